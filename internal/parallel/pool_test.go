// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

import (
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWorkerPool_Create(t *testing.T) {
	p := NewWorkerPool(3)
	defer p.Close()
	if p.Workers() != 3 {
		t.Errorf("Workers() = %d, want 3", p.Workers())
	}
	if !p.IsRunning() {
		t.Error("new pool is not running")
	}
}

func TestWorkerPool_CreateDefault(t *testing.T) {
	for _, n := range []int{0, -1} {
		p := NewWorkerPool(n)
		if p.Workers() != runtime.GOMAXPROCS(0) {
			t.Errorf("NewWorkerPool(%d).Workers() = %d, want GOMAXPROCS", n, p.Workers())
		}
		p.Close()
	}
}

func TestWorkerPool_ExecuteAll(t *testing.T) {
	p := NewWorkerPool(4)
	defer p.Close()

	const n = 1000
	var count atomic.Int64
	work := make([]func(), n)
	for i := range work {
		work[i] = func() { count.Add(1) }
	}
	p.ExecuteAll(work)
	if got := count.Load(); got != n {
		t.Errorf("ran %d functions, want %d", got, n)
	}
}

func TestWorkerPool_ExecuteAllWaits(t *testing.T) {
	p := NewWorkerPool(2)
	defer p.Close()

	var done atomic.Int64
	work := make([]func(), 8)
	for i := range work {
		work[i] = func() {
			time.Sleep(time.Millisecond)
			done.Add(1)
		}
	}
	p.ExecuteAll(work)
	if done.Load() != 8 {
		t.Errorf("ExecuteAll returned after %d of 8 functions", done.Load())
	}
}

func TestWorkerPool_ExecuteAllEmpty(t *testing.T) {
	p := NewWorkerPool(2)
	defer p.Close()
	p.ExecuteAll(nil)
	p.ExecuteAll([]func(){})
}

func TestWorkerPool_CloseIdempotent(t *testing.T) {
	p := NewWorkerPool(2)
	p.Close()
	p.Close()
	if p.IsRunning() {
		t.Error("closed pool is running")
	}
}

func TestWorkerPool_ExecuteAfterCloseRunsInline(t *testing.T) {
	p := NewWorkerPool(2)
	p.Close()
	ran := 0
	p.ExecuteAll([]func(){func() { ran++ }, func() { ran++ }})
	if ran != 2 {
		t.Errorf("ran %d functions after Close, want 2", ran)
	}
}

func TestWorkerPool_Concurrent(t *testing.T) {
	p := NewWorkerPool(4)
	defer p.Close()

	var wg sync.WaitGroup
	var count atomic.Int64
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			work := make([]func(), 50)
			for i := range work {
				work[i] = func() { count.Add(1) }
			}
			p.ExecuteAll(work)
		}()
	}
	wg.Wait()
	if got := count.Load(); got != 400 {
		t.Errorf("ran %d functions, want 400", got)
	}
}

func TestWorkerPool_NoGoroutineLeak(t *testing.T) {
	before := runtime.NumGoroutine()
	for range 10 {
		p := NewWorkerPool(4)
		p.ExecuteAll([]func(){func() {}})
		p.Close()
	}
	time.Sleep(10 * time.Millisecond)
	if after := runtime.NumGoroutine(); after > before+2 {
		t.Errorf("goroutines %d -> %d", before, after)
	}
}

func TestBands(t *testing.T) {
	tests := []struct {
		height, rows int
		want         []Band
	}{
		{0, 4, nil},
		{3, 4, []Band{{0, 3}}},
		{8, 4, []Band{{0, 4}, {4, 8}}},
		{10, 4, []Band{{0, 4}, {4, 8}, {8, 10}}},
		{2, 0, []Band{{0, 1}, {1, 2}}},
	}
	for _, tt := range tests {
		if got := Bands(tt.height, tt.rows); !slices.Equal(got, tt.want) {
			t.Errorf("Bands(%d, %d) = %v, want %v", tt.height, tt.rows, got, tt.want)
		}
	}
}

func TestForEachBandCoversEveryRow(t *testing.T) {
	p := NewWorkerPool(3)
	defer p.Close()

	for _, pool := range []*WorkerPool{nil, p} {
		rows := make([]int32, 37)
		ForEachBand(pool, len(rows), 5, func(b Band) {
			for y := b.Y0; y < b.Y1; y++ {
				atomic.AddInt32(&rows[y], 1)
			}
		})
		for y, n := range rows {
			if n != 1 {
				t.Errorf("row %d visited %d times", y, n)
			}
		}
	}
}
