package mirror

import "sync"

// dirtyQueue lists the nodes whose buffers went from clean to dirty. The
// client pushes, the worker takes once per frame.
type dirtyQueue struct {
	mu    sync.Mutex
	ids   []ID
	spare []ID
}

func (q *dirtyQueue) push(id ID) {
	q.mu.Lock()
	q.ids = append(q.ids, id)
	q.mu.Unlock()
}

// take returns the queued IDs. The slice is valid until the next take.
func (q *dirtyQueue) take() []ID {
	q.mu.Lock()
	ids := q.ids
	q.ids = q.spare[:0]
	q.spare = ids
	q.mu.Unlock()
	return ids
}
