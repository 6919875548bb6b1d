// Package mirror drives a lantern stage from a control goroutine while the
// stage runs on its own frame-loop goroutine.
//
// Every mirrored node has a [BufferStruct]: a tagged block of 64-bit words,
// one per property, plus a lock word and a dirty bitmask. Property writes on
// the control side are atomic stores into the buffer and never block. The
// first write to a clean buffer queues the node, and at the start of the
// next frame the [Worker] applies only the fields whose dirty bits are set.
//
// Structural operations (create, reparent, destroy, text, textures, shaders,
// animations) travel as [Message] values over a bounded channel and are
// applied in order before the dirty fields. Node events the control side
// subscribed to, animation events and message failures come back as [Event]
// values, delivered to listeners by [Client.Dispatch] or [Client.Poll].
//
// Usage:
//
//	client, worker := mirror.New(stage)
//	go func() {
//		p := mirror.DefaultNodeProps()
//		p.Parent = client.Root()
//		box, _ := client.CreateNode(p)
//		box.SetSize(200, 120)
//		box.SetColor(0x3366ffff)
//		a, _ := box.Animate(lantern.AnimationProps{
//			Props: map[lantern.Prop]float64{lantern.PropX: 400},
//		}, lantern.AnimationSettings{Duration: time.Second})
//		a.Start()
//	}()
//	return mirror.Run(ctx, client, worker, nil)
package mirror
