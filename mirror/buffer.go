package mirror

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/phanxgames/lantern"
)

// Lock word states.
const (
	lockShared  = 0 // acknowledged by the worker
	lockPending = 1 // allocated, not yet seen by the worker
)

// BufferStruct is the fixed-layout block mirroring one node's mutable
// properties. Every word is read and written atomically, so the control
// side and the worker never tear a value. Word 0 holds the tag, word 1 the
// lock and word 2 the dirty bitmask; fields follow at the offsets of the
// layout.
//
// A new buffer is locked until the worker acknowledges the create message.
// While it is locked, control-side writes land in the buffer but the node
// is not queued for incremental updates; the worker reads the whole buffer
// when it creates the node and rechecks the dirty mask right after the
// acknowledgement.
type BufferStruct struct {
	words  []uint64
	layout *Layout

	ackOnce sync.Once
	acked   chan struct{}
}

// NewBufferStruct allocates a locked buffer for l.
func NewBufferStruct(l *Layout) *BufferStruct {
	b := &BufferStruct{
		words:  make([]uint64, l.Words()),
		layout: l,
		acked:  make(chan struct{}),
	}
	b.words[wordTag] = uint64(l.Tag)
	b.words[wordLock] = lockPending
	return b
}

// Tag returns the buffer's tag.
func (b *BufferStruct) Tag() Tag { return Tag(atomic.LoadUint64(&b.words[wordTag])) }

// Layout returns the buffer's layout.
func (b *BufferStruct) Layout() *Layout { return b.layout }

// Shared reports whether the worker acknowledged the buffer.
func (b *BufferStruct) Shared() bool {
	return atomic.LoadUint64(&b.words[wordLock]) == lockShared
}

// Ack unlocks the buffer. Called by the worker once the node exists.
func (b *BufferStruct) Ack() {
	b.ackOnce.Do(func() {
		atomic.StoreUint64(&b.words[wordLock], lockShared)
		close(b.acked)
	})
}

// Acked is closed when the worker acknowledges the buffer.
func (b *BufferStruct) Acked() <-chan struct{} { return b.acked }

// Dirty returns the dirty bitmask without clearing it.
func (b *BufferStruct) Dirty() uint64 { return atomic.LoadUint64(&b.words[wordDirty]) }

// TakeDirty returns and clears the dirty bitmask. A field written after
// TakeDirty is marked again and picked up next time.
func (b *BufferStruct) TakeDirty() uint64 { return atomic.SwapUint64(&b.words[wordDirty], 0) }

func (b *BufferStruct) word(f Field) *uint64 {
	if !b.layout.Has(f) {
		panic(fmt.Sprintf("mirror: field %d not in %s layout", f, b.layout.Tag))
	}
	return &b.words[b.layout.Fields[f].Word]
}

// store writes v and marks f dirty. It reports whether the mask was clean
// before, meaning the buffer has to be queued for the worker.
func (b *BufferStruct) store(f Field, v uint64) (wasClean bool) {
	atomic.StoreUint64(b.word(f), v)
	return atomic.OrUint64(&b.words[wordDirty], 1<<f) == 0
}

// load reads the raw bits of f.
func (b *BufferStruct) load(f Field) uint64 { return atomic.LoadUint64(b.word(f)) }

// init writes v without marking f dirty. Used before the buffer is sent.
func (b *BufferStruct) init(f Field, v uint64) { atomic.StoreUint64(b.word(f), v) }

// Float reads a float field.
func (b *BufferStruct) Float(f Field) float64 { return math.Float64frombits(b.load(f)) }

// Int reads an int field.
func (b *BufferStruct) Int(f Field) int { return int(int64(b.load(f))) }

// Bool reads a bool field.
func (b *BufferStruct) Bool(f Field) bool { return b.load(f) != 0 }

// Color reads a color field.
func (b *BufferStruct) Color(f Field) lantern.Color { return lantern.Color(uint32(b.load(f))) }

// ID reads a handle field.
func (b *BufferStruct) ID(f Field) ID { return ID(b.load(f)) }

func floatBits(v float64) uint64 { return math.Float64bits(v) }

func intBits(v int) uint64 { return uint64(int64(v)) }

func boolBits(v bool) uint64 {
	if v {
		return 1
	}
	return 0
}

func colorBits(c lantern.Color) uint64 { return uint64(c) }
