package compose

import (
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/render"
)

// appendOp records i into *log when applied.
func appendOp(log *[]int, i int) Op {
	return func(*Driver) error {
		*log = append(*log, i)
		return nil
	}
}

func TestQueueRestoresOrder(t *testing.T) {
	const n = 64
	q := NewQueue()
	tickets := make([]Ticket, n)
	for i := range tickets {
		tk, err := q.Reserve()
		if err != nil {
			t.Fatal(err)
		}
		tickets[i] = tk
	}

	var log []int
	var wg sync.WaitGroup
	for i := n - 1; i >= 0; i-- {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := q.Submit(tickets[i], appendOp(&log, 2*i), appendOp(&log, 2*i+1)); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()

	applied, err := q.Drain(nil)
	if err != nil {
		t.Fatal(err)
	}
	if applied != n {
		t.Errorf("Drain applied %d submissions, want %d", applied, n)
	}
	want := make([]int, 2*n)
	for i := range want {
		want[i] = i
	}
	if !slices.Equal(log, want) {
		t.Errorf("operations applied out of order: %v", log)
	}
	if q.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0", q.Pending())
	}
}

func TestQueueStopsAtGap(t *testing.T) {
	q := NewQueue()
	t0, _ := q.Reserve()
	t1, _ := q.Reserve()
	t2, _ := q.Reserve()

	var log []int
	if err := q.Submit(t2, appendOp(&log, 2)); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(t0, appendOp(&log, 0)); err != nil {
		t.Fatal(err)
	}

	if n, err := q.Drain(nil); err != nil || n != 1 {
		t.Fatalf("Drain() = %d, %v, want 1, nil", n, err)
	}
	if q.Pending() != 2 {
		t.Errorf("Pending() = %d, want 2", q.Pending())
	}

	// An empty submission fills the gap.
	if err := q.Submit(t1); err != nil {
		t.Fatal(err)
	}
	if n, err := q.Drain(nil); err != nil || n != 2 {
		t.Fatalf("Drain() = %d, %v, want 2, nil", n, err)
	}
	if !slices.Equal(log, []int{0, 2}) {
		t.Errorf("log = %v, want [0 2]", log)
	}
}

func TestQueueSubmitRejects(t *testing.T) {
	q := NewQueue()
	tk, _ := q.Reserve()

	if err := q.Submit(tk + 1); !errors.Is(err, ErrConfiguration) {
		t.Errorf("unreserved ticket: %v, want ErrConfiguration", err)
	}
	if err := q.Submit(tk); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(tk); !errors.Is(err, ErrConfiguration) {
		t.Errorf("duplicate ticket: %v, want ErrConfiguration", err)
	}
	if _, err := q.Drain(nil); err != nil {
		t.Fatal(err)
	}
	if err := q.Submit(tk); !errors.Is(err, ErrConfiguration) {
		t.Errorf("applied ticket: %v, want ErrConfiguration", err)
	}
}

func TestQueueErrorDropsRestOfSubmission(t *testing.T) {
	q := NewQueue()
	t0, _ := q.Reserve()
	t1, _ := q.Reserve()

	boom := errors.New("boom")
	var log []int
	fail := func(*Driver) error { return boom }
	_ = q.Submit(t0, appendOp(&log, 0), fail, appendOp(&log, 1))
	_ = q.Submit(t1, appendOp(&log, 2))

	n, err := q.Drain(nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Drain error = %v, want boom", err)
	}
	if n != 1 {
		t.Errorf("Drain applied %d, want 1", n)
	}
	if !slices.Equal(log, []int{0}) {
		t.Errorf("log = %v, want [0]", log)
	}

	// The next submission is still queued.
	if n, err := q.Drain(nil); err != nil || n != 1 {
		t.Fatalf("second Drain() = %d, %v, want 1, nil", n, err)
	}
	if !slices.Equal(log, []int{0, 2}) {
		t.Errorf("log = %v, want [0 2]", log)
	}
}

func TestQueueClose(t *testing.T) {
	q := NewQueue()
	tk, _ := q.Reserve()
	var log []int
	if err := q.Submit(tk, appendOp(&log, 0)); err != nil {
		t.Fatal(err)
	}
	q.Close()

	if _, err := q.Reserve(); !errors.Is(err, ErrClosed) {
		t.Errorf("Reserve after Close: %v, want ErrClosed", err)
	}
	if err := q.Submit(tk + 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Submit after Close: %v, want ErrClosed", err)
	}
	if n, err := q.Drain(nil); err != nil || n != 1 {
		t.Errorf("Drain after Close = %d, %v, want 1, nil", n, err)
	}
}

func TestQueueDrivesDriver(t *testing.T) {
	d := newTestDriver(t, backend.BackendSoftware, 4, 4)
	q := NewQueue()
	first, _ := q.Reserve()
	second, _ := q.Reserve()

	// The second submission arrives first but paints over the first.
	_ = q.Submit(second,
		OpSetBlendMode(render.BlendSourceOver),
		OpDraw(render.Quad(0, 0, 4, 4, render.Blue)),
	)
	_ = q.Submit(first,
		OpSelectLayer(0),
		OpSetFill(SolidFill()),
		OpSetTransform(render.Identity()),
		OpDraw(render.Quad(0, 0, 4, 4, render.Red)),
	)
	if _, err := q.Drain(d); err != nil {
		t.Fatal(err)
	}
	mustFlush(t, d)
	expectPixel(t, d, 1, 1, render.Blue)
}

func TestQueueMaskOps(t *testing.T) {
	d := newTestDriver(t, backend.BackendSoftware, 4, 4)
	q := NewQueue()
	tk, _ := q.Reserve()
	_ = q.Submit(tk,
		OpDrawErase(render.Quad(0, 0, 2, 4, render.White)),
		OpDrawClip(render.Quad(0, 0, 4, 2, render.White)),
		OpSetEraseMask(true),
		OpSetClipMask(true),
		OpDraw(render.Quad(0, 0, 4, 4, render.Red)),
	)
	if _, err := q.Drain(d); err != nil {
		t.Fatal(err)
	}
	mustFlush(t, d)
	expectPixel(t, d, 0, 0, render.Transparent) // erased
	expectPixel(t, d, 3, 3, render.Transparent) // clipped
	expectPixel(t, d, 3, 0, render.Red)

	tk, _ = q.Reserve()
	_ = q.Submit(tk, OpClearLayer())
	if _, err := q.Drain(d); err != nil {
		t.Fatal(err)
	}
	mustFlush(t, d)
	expectPixel(t, d, 3, 0, render.Transparent)
}
