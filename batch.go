package lantern

// batchKey groups quads that can be submitted in a single draw call.
type batchKey struct {
	texture *Texture
	shader  *ShaderType
	clip    Rect
	clipped bool
}

func quadBatchKey(q *Quad) batchKey {
	k := batchKey{texture: q.Texture, shader: q.Shader, clipped: q.Clipped}
	if q.Clipped {
		k.clip = q.Clip
	}
	return k
}

// appendBatches splits quads into runs of consecutive quads sharing a batch
// key. Paint order is preserved: quads are never reordered to merge runs.
// Batch.Quads aliases quads.
func appendBatches(batches []Batch, target *Texture, quads []Quad) []Batch {
	if len(quads) == 0 {
		return batches
	}
	start := 0
	key := quadBatchKey(&quads[0])
	for i := 1; i <= len(quads); i++ {
		if i < len(quads) {
			k := quadBatchKey(&quads[i])
			if k == key {
				continue
			}
			batches = append(batches, newBatch(target, key, quads[start:i]))
			start, key = i, k
			continue
		}
		batches = append(batches, newBatch(target, key, quads[start:i]))
	}
	return batches
}

func newBatch(target *Texture, k batchKey, quads []Quad) Batch {
	return Batch{
		Target:  target,
		Texture: k.texture,
		Shader:  k.shader,
		Clip:    k.clip,
		Clipped: k.clipped,
		Quads:   quads,
	}
}

// countBatches reports how many draw calls quads would produce.
func countBatches(quads []Quad) int {
	if len(quads) == 0 {
		return 0
	}
	count := 1
	prev := quadBatchKey(&quads[0])
	for i := 1; i < len(quads); i++ {
		cur := quadBatchKey(&quads[i])
		if cur != prev {
			count++
			prev = cur
		}
	}
	return count
}
