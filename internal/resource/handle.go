// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import "fmt"

// Handle refers to a resource owned by a Manager. The zero Handle is
// invalid. A handle goes stale when its resource is freed or evicted;
// the slot generation prevents a reused slot from answering to it.
type Handle struct {
	index uint32
	gen   uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.index == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("resource(%d#%d)", h.index, h.gen)
}
