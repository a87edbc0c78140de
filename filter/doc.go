// Package filter runs image filters on single-sample textures as chains
// of fullscreen GPU passes.
//
// Every filter is stateless: a pass reads its source and writes a new
// texture, so a chain is a sequence of ping-pong passes. Available
// filters:
//   - Gaussian blur, separable, with linear-sampling tap collapse
//   - Alpha adjust, optionally blending toward white
//   - Mask by the alpha of a second texture
//   - Displacement by a map texture
//   - Half-size reduction, and mipmap chains built from it
//
// The uploaded blur tables are evictable and re-uploaded on demand. Pass
// outputs belong to the caller, who frees them.
package filter
