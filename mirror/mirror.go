package mirror

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/phanxgames/lantern"
)

const (
	defaultQueueSize      = 256
	defaultEventQueueSize = 256
)

type config struct {
	queueSize      int
	eventQueueSize int
}

// Option configures New.
type Option func(*config)

// WithQueueSize sets how many structural messages may be in flight before
// client calls block. Defaults to 256.
func WithQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithEventQueueSize sets how many events the worker buffers for the
// client. Events beyond it are dropped. Defaults to 256.
func WithEventQueueSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.eventQueueSize = n
		}
	}
}

// New mirrors stage. The returned worker hooks into the stage's frame loop
// and event sink, so it must be created before the loop starts. The client
// may be used from any goroutine.
func New(stage *lantern.Stage, opts ...Option) (*Client, *Worker) {
	cfg := config{queueSize: defaultQueueSize, eventQueueSize: defaultEventQueueSize}
	for _, o := range opts {
		o(&cfg)
	}
	msgs := make(chan Message, cfg.queueSize)
	events := make(chan Event, cfg.eventQueueSize)
	dirty := &dirtyQueue{}

	root := NewBufferStruct(NodeLayout)
	initNodeBuffer(root, rootProps(stage.Root()))
	root.Ack()

	w := newWorker(stage, msgs, events, dirty, root)
	c := newClient(msgs, events, dirty, root)
	return c, w
}

// rootProps reads the root's current values so that the root buffer starts
// in step with the stage.
func rootProps(n *lantern.Node) NodeProps {
	p := DefaultNodeProps()
	np := &p.NodeProps
	np.X, np.Y = n.Prop(lantern.PropX), n.Prop(lantern.PropY)
	np.Width, np.Height = n.Prop(lantern.PropWidth), n.Prop(lantern.PropHeight)
	np.ScaleX, np.ScaleY = n.Prop(lantern.PropScaleX), n.Prop(lantern.PropScaleY)
	np.Rotation = n.Prop(lantern.PropRotation)
	np.MountX, np.MountY = n.Prop(lantern.PropMountX), n.Prop(lantern.PropMountY)
	np.PivotX, np.PivotY = n.Prop(lantern.PropPivotX), n.Prop(lantern.PropPivotY)
	np.Alpha = n.Prop(lantern.PropAlpha)
	np.ZIndex = int(n.Prop(lantern.PropZIndex))
	cs := n.Colors()
	np.Color = cs[0]
	np.ColorTl, np.ColorTr, np.ColorBl, np.ColorBr = cs[0], cs[1], cs[2], cs[3]
	return p
}

// Run drives the worker's frame loop and the client's event dispatch until
// ctx is done, either side fails or the client closes. The client is closed
// on return.
func Run(ctx context.Context, c *Client, w *Worker, refresh <-chan time.Time) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer c.Close()
		return w.Run(ctx, refresh)
	})
	g.Go(func() error {
		err := c.Dispatch(ctx)
		if err == nil {
			// Closed by the application: stop the frame loop too.
			return errClientClosed
		}
		return err
	})
	if err := g.Wait(); !errors.Is(err, errClientClosed) {
		return err
	}
	return nil
}
