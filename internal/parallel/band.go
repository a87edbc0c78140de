// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package parallel

// Band is the half-open row range [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// Bands splits height rows into bands of at most rows rows.
func Bands(height, rows int) []Band {
	if height <= 0 {
		return nil
	}
	rows = max(rows, 1)
	bands := make([]Band, 0, (height+rows-1)/rows)
	for y := 0; y < height; y += rows {
		bands = append(bands, Band{Y0: y, Y1: min(y+rows, height)})
	}
	return bands
}

// ForEachBand calls fn for every band of height rows. Bands run on p
// when it is non-nil and there is more than one band, otherwise on the
// calling goroutine in order.
func ForEachBand(p *WorkerPool, height, rows int, fn func(Band)) {
	bands := Bands(height, rows)
	if p == nil || len(bands) < 2 {
		for _, b := range bands {
			fn(b)
		}
		return
	}
	work := make([]func(), len(bands))
	for i, b := range bands {
		work[i] = func() { fn(b) }
	}
	p.ExecuteAll(work)
}
