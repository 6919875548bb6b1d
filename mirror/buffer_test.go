package mirror

import (
	"sync"
	"testing"

	"github.com/phanxgames/lantern"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferStructLockedUntilAck(t *testing.T) {
	b := NewBufferStruct(NodeLayout)
	assert.Equal(t, TagNode, b.Tag())
	assert.False(t, b.Shared())
	select {
	case <-b.Acked():
		t.Fatal("acked before Ack")
	default:
	}

	b.Ack()
	b.Ack()
	assert.True(t, b.Shared())
	select {
	case <-b.Acked():
	default:
		t.Fatal("Acked not closed")
	}
}

func TestBufferStructDirtyMask(t *testing.T) {
	b := NewBufferStruct(NodeLayout)
	assert.Zero(t, b.Dirty())

	assert.True(t, b.store(FieldX, floatBits(10)))
	assert.False(t, b.store(FieldY, floatBits(20)))
	assert.False(t, b.store(FieldX, floatBits(30)))
	assert.Equal(t, uint64(1<<FieldX|1<<FieldY), b.Dirty())

	assert.Equal(t, uint64(1<<FieldX|1<<FieldY), b.TakeDirty())
	assert.Zero(t, b.Dirty())
	assert.Equal(t, 30.0, b.Float(FieldX))
	assert.Equal(t, 20.0, b.Float(FieldY))

	assert.True(t, b.store(FieldAlpha, floatBits(0.5)))
}

func TestBufferStructInitDoesNotMarkDirty(t *testing.T) {
	b := NewBufferStruct(TextNodeLayout)
	b.init(FieldFontSize, floatBits(32))
	b.init(FieldMaxLines, intBits(-1))
	b.init(FieldClipping, boolBits(true))
	b.init(FieldColorTl, colorBits(0xff0000ff))
	b.init(FieldTexture, 42)

	assert.Zero(t, b.Dirty())
	assert.Equal(t, 32.0, b.Float(FieldFontSize))
	assert.Equal(t, -1, b.Int(FieldMaxLines))
	assert.True(t, b.Bool(FieldClipping))
	assert.Equal(t, lantern.Color(0xff0000ff), b.Color(FieldColorTl))
	assert.Equal(t, ID(42), b.ID(FieldTexture))
}

func TestBufferStructFieldOutsideLayout(t *testing.T) {
	b := NewBufferStruct(NodeLayout)
	assert.Panics(t, func() { b.Float(FieldFontSize) })
}

func TestBufferStructConcurrentWrites(t *testing.T) {
	b := NewBufferStruct(NodeLayout)
	b.Ack()

	fields := []Field{FieldX, FieldY, FieldWidth, FieldHeight}
	var mu sync.Mutex
	clean := 0
	var wg sync.WaitGroup
	for _, f := range fields {
		wg.Add(1)
		go func(f Field) {
			defer wg.Done()
			for i := range 1000 {
				if b.store(f, floatBits(float64(i))) {
					mu.Lock()
					clean++
					mu.Unlock()
				}
			}
		}(f)
	}
	wg.Wait()

	// Only the first write after a clean mask reports clean.
	assert.Equal(t, 1, clean)
	mask := b.TakeDirty()
	for _, f := range fields {
		require.NotZero(t, mask&(1<<f), "field %d", f)
		assert.Equal(t, 999.0, b.Float(f))
	}
}
