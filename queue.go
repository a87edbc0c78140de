package compose

import (
	"fmt"
	"sync"

	"github.com/gogpu/compose/render"
)

// Op is one driver operation of a queued submission.
type Op func(*Driver) error

// Ticket orders a submission. Tickets are handed out in production order
// by [Queue.Reserve].
type Ticket uint64

// Queue restores production order between tessellation workers and the
// driver. A producer reserves a ticket before it starts work and submits
// the resulting operations under that ticket whenever it finishes;
// [Queue.Drain] applies submissions strictly in ticket order.
//
// Reserve, Submit and Pending are safe for concurrent use. Drain must be
// called from the goroutine that owns the driver.
type Queue struct {
	mu     sync.Mutex
	next   Ticket // next ticket to reserve
	head   Ticket // next ticket to apply
	ready  map[Ticket][]Op
	closed bool
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{ready: make(map[Ticket][]Op)}
}

// Reserve returns the next ticket.
func (q *Queue) Reserve() (Ticket, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return 0, ErrClosed
	}
	t := q.next
	q.next++
	return t, nil
}

// Submit hands over the operations produced under t. A submission may be
// empty. Each ticket is submitted once.
func (q *Queue) Submit(t Ticket, ops ...Op) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	if t >= q.next {
		return fmt.Errorf("%w: ticket %d was not reserved", ErrConfiguration, t)
	}
	if _, dup := q.ready[t]; dup || t < q.head {
		return fmt.Errorf("%w: ticket %d already submitted", ErrConfiguration, t)
	}
	if ops == nil {
		ops = []Op{}
	}
	q.ready[t] = ops
	return nil
}

// Drain applies submitted operations to d in ticket order and stops at
// the first ticket not yet submitted. It returns the number of
// submissions applied.
//
// When an operation fails, the rest of its submission is dropped and the
// error is returned; later submissions stay queued.
func (q *Queue) Drain(d *Driver) (int, error) {
	n := 0
	for {
		ops, ok := q.pop()
		if !ok {
			return n, nil
		}
		n++
		for _, op := range ops {
			if err := op(d); err != nil {
				return n, err
			}
		}
	}
}

func (q *Queue) pop() ([]Op, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	ops, ok := q.ready[q.head]
	if !ok {
		return nil, false
	}
	delete(q.ready, q.head)
	q.head++
	return ops, true
}

// Pending returns the number of tickets reserved but not yet applied.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int(q.next - q.head)
}

// Close stops the queue. Later Reserve and Submit calls fail with
// ErrClosed; submissions already made can still be drained.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.closed = true
}

// OpDraw draws batch.
func OpDraw(batch []render.Vertex) Op {
	return func(d *Driver) error { return d.Draw(batch) }
}

// OpDrawErase adds batch to the erase mask of the current layer.
func OpDrawErase(batch []render.Vertex) Op {
	return func(d *Driver) error { return d.DrawErase(batch) }
}

// OpDrawClip adds batch to the clip mask of the current layer.
func OpDrawClip(batch []render.Vertex) Op {
	return func(d *Driver) error { return d.DrawClip(batch) }
}

// OpSelectLayer selects layer id.
func OpSelectLayer(id int) Op {
	return func(d *Driver) error { return d.SelectLayer(id) }
}

// OpSetFill sets the fill.
func OpSetFill(f Fill) Op {
	return func(d *Driver) error {
		d.SetFill(f)
		return nil
	}
}

// OpSetBlendMode sets the blend mode.
func OpSetBlendMode(m render.BlendMode) Op {
	return func(d *Driver) error {
		d.SetBlendMode(m)
		return nil
	}
}

// OpSetTransform sets the transform.
func OpSetTransform(m render.Matrix) Op {
	return func(d *Driver) error {
		d.SetTransform(m)
		return nil
	}
}

// OpSetEraseMask activates or deactivates the erase mask.
func OpSetEraseMask(on bool) Op {
	return func(d *Driver) error {
		d.SetEraseMask(on)
		return nil
	}
}

// OpSetClipMask activates or deactivates the clip mask.
func OpSetClipMask(on bool) Op {
	return func(d *Driver) error {
		d.SetClipMask(on)
		return nil
	}
}

// OpClearLayer clears the current layer.
func OpClearLayer() Op {
	return (*Driver).ClearLayer
}
