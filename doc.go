// Package compose turns tessellated 2D geometry and drawing state into
// GPU draw calls.
//
// # Overview
//
// A [Driver] owns one backend device and renders batches of triangles
// into numbered layers. Layers are multisampled, independently
// clearable surfaces; [Driver.Flush] resolves every layer drawn to since
// the previous flush and composites all layers back to front, in
// ascending id order, into the frame.
//
// # Quick Start
//
//	d, err := compose.New(640, 480)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer d.Close()
//
//	d.SetFill(compose.SolidFill())
//	d.Draw(render.Quad(10, 10, 200, 100, render.Red))
//	if err := d.Flush(ctx); err != nil {
//		log.Fatal(err)
//	}
//	img, _ := d.Frame()
//
// # Drawing State
//
// Every draw reads the current layer, fill, blend mode, transform and
// mask activation. Each is changed by an explicit call; no transition
// happens implicitly. Erase and clip coverage is drawn with
// [Driver.DrawErase] and [Driver.DrawClip] and modulates later draws to
// the same layer while activated with [Driver.SetEraseMask] and
// [Driver.SetClipMask].
//
// # Backends
//
// Backends register with package backend. The software backend is always
// linked; import backend/compat or backend/native to make them
// available, or pass a device with [WithDevice].
//
// # Concurrency
//
// A Driver is not safe for concurrent use. Tessellation workers hand
// batches to it through a [Queue], which restores production order.
//
// # Coordinate System
//
// Batch positions are in pixels after the current transform:
//   - Origin (0,0) at top-left
//   - X increases right
//   - Y increases down
package compose
