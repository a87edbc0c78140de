// Package backend defines the device interface composition backends
// implement, plus a registry for selecting one at runtime.
//
// # Backend Registration
//
// Backends register themselves from init() functions. Import the backend
// packages you want available:
//
//	import (
//		_ "github.com/gogpu/compose/backend/compat"
//		_ "github.com/gogpu/compose/backend/native"
//		_ "github.com/gogpu/compose/backend/software"
//	)
//
// # Backend Selection
//
// Use Default() to open the best available backend, or Open() to request
// a specific backend by name:
//
//	dev, err := backend.Default()
//
//	// Or request a specific backend
//	dev, err := backend.Open("compat")
//
// # Available Backends
//
//   - "native": gogpu/wgpu HAL device (GPU)
//   - "software": reference rasterizer with float storage and a
//     programmable multisample resolve
//   - "compat": compatibility profile with 8-bit storage, fixed-function
//     multisample readback and no native premultiplied output
package backend
