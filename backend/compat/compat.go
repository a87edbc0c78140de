// Package compat provides the compatibility-profile backend.
//
// It models a restricted graphics API: textures hold 8 bits per channel,
// the fragment stage cannot write premultiplied output directly (the
// driver premultiplies with a multiply-alpha pass at resolve time),
// multisample images can only be read back through a fixed-function
// blit, and only 1x and 4x multisampling exist. Rasterization is shared
// with the software backend so that differences between the two are
// differences of capability, not of geometry.
package compat

import (
	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/backend/software"
	"github.com/gogpu/compose/render"
)

func init() {
	backend.Register(backend.BackendCompat, func() (backend.Device, error) {
		return New(), nil
	})
}

// Capabilities of the compatibility profile.
var Capabilities = render.Capabilities{
	SampleCounts:         []int{1, 4},
	NativePremultiplied:  false,
	MaxTextureSize:       4096,
	FixedFunctionResolve: true,
}

// New returns a compatibility-profile device.
func New() *software.Device {
	return software.NewProfile(backend.BackendCompat, Capabilities, true)
}
