package compose

import (
	"errors"

	"github.com/gogpu/compose/render"
)

// Errors returned by the driver. Test for them with errors.Is.
var (
	// ErrConfiguration reports a missing or failed shader program, an
	// invalid option or an invalid argument.
	ErrConfiguration = render.ErrConfiguration

	// ErrResourceExhausted reports a failed allocation. The current frame
	// is abandoned; retrying after releasing resources may succeed.
	ErrResourceExhausted = render.ErrResourceExhausted

	// ErrStaleHandle reports use of a released texture, gradient, dash
	// pattern or sprite bake.
	ErrStaleHandle = render.ErrStaleHandle

	// ErrCapabilityMismatch reports a request the backend cannot serve.
	ErrCapabilityMismatch = render.ErrCapabilityMismatch

	// ErrClosed is returned by every operation on a closed driver.
	ErrClosed = errors.New("compose: driver closed")

	// ErrSpriteNotFound is returned for sprite names never defined or
	// already released.
	ErrSpriteNotFound = errors.New("compose: sprite not found")
)

// IsRetryable reports whether err may succeed when retried later.
func IsRetryable(err error) bool {
	return render.IsRetryable(err)
}
