// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package render

import "errors"

// Error taxonomy shared by every component.
var (
	// ErrConfiguration is returned when a program for a requested variant
	// is missing or failed to build. It surfaces at construction time,
	// never while drawing a frame.
	ErrConfiguration = errors.New("render: configuration error")

	// ErrResourceExhausted is returned when a texture or target cannot be
	// allocated. The current frame is abandoned; the operation may be
	// retried once resources are released.
	ErrResourceExhausted = errors.New("render: resource exhausted")

	// ErrStaleHandle is returned when a handle's generation no longer
	// matches the resource it refers to. It indicates a bug in the caller.
	ErrStaleHandle = errors.New("render: stale handle")

	// ErrCapabilityMismatch is returned when a request needs something the
	// backend cannot provide, such as an unsupported sample count.
	ErrCapabilityMismatch = errors.New("render: capability mismatch")
)

// IsRetryable reports whether err may succeed when retried later.
// Only resource exhaustion is retryable; stale handles and configuration
// errors must be fixed in the calling code.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrResourceExhausted)
}
