package popup

import "context"

// Queue is a Dispatcher backed by a channel, for hosts that run their own
// loop: transports post completions and the owner goroutine runs them.
type Queue struct {
	ch chan func()
}

// NewQueue creates a queue holding up to size pending functions before
// Dispatch blocks.
func NewQueue(size int) *Queue {
	return &Queue{ch: make(chan func(), size)}
}

// Dispatch posts fn. It is safe to call from any goroutine.
func (q *Queue) Dispatch(fn func()) {
	q.ch <- fn
}

// RunPending runs the functions already posted and returns how many ran.
func (q *Queue) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-q.ch:
			fn()
			n++
		default:
			return n
		}
	}
}

// RunUntil runs posted functions until done reports true or ctx ends.
func (q *Queue) RunUntil(ctx context.Context, done func() bool) error {
	for !done() {
		select {
		case fn := <-q.ch:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
