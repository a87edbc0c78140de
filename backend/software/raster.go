package software

import (
	"math"

	"github.com/gogpu/compose/internal/parallel"
	"github.com/gogpu/compose/render"
	"github.com/gogpu/compose/shader"
)

// bandRows is the height of the row bands shaded concurrently.
const bandRows = 32

// samplePositions are the standard multisample locations within a pixel.
var samplePositions = map[int][][2]float32{
	1: {{0.5, 0.5}},
	2: {{0.75, 0.75}, {0.25, 0.25}},
	4: {{0.375, 0.125}, {0.875, 0.375}, {0.125, 0.625}, {0.625, 0.875}},
	8: {
		{0.5625, 0.3125}, {0.4375, 0.6875}, {0.8125, 0.5625}, {0.3125, 0.1875},
		{0.1875, 0.8125}, {0.0625, 0.4375}, {0.6875, 0.9375}, {0.9375, 0.0625},
	},
}

// vertexOut is a vertex after the vertex stage.
type vertexOut struct {
	x, y     float32 // pixel coordinates
	pos      [2]float32
	texCoord [2]float32
	color    render.Color
}

// edge evaluates the edge function of a->b at p. It is positive when p
// lies to the right of a->b in y-down pixel space.
func edge(a, b *vertexOut, px, py float32) float32 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// topLeft reports whether samples exactly on a->b belong to the triangle.
// Each shared edge is owned by exactly one of its two triangles.
func topLeft(a, b *vertexOut) bool {
	dx, dy := b.x-a.x, b.y-a.y
	return dy < 0 || (dy == 0 && dx > 0)
}

// rasterizer draws triangle lists into one target.
type rasterizer struct {
	target   *Texture
	program  *shader.Program
	bindings *render.Bindings
	blend    render.BlendState
	sampler  sampler
	pool     *parallel.WorkerPool // nil shades on the calling goroutine
}

func (r *rasterizer) vertex(v render.Vertex) vertexOut {
	w, h := float32(r.target.Width()), float32(r.target.Height())
	cx, cy := r.bindings.Uniforms.Transform.Apply(v.Pos[0], v.Pos[1])
	return vertexOut{
		x:        (cx + 1) * 0.5 * w,
		y:        (1 - cy) * 0.5 * h,
		pos:      v.Pos,
		texCoord: v.TexCoord,
		color:    v.NormalizedColor(),
	}
}

// drawTriangles shades the triangles of vs band by band. Within a band
// triangles are drawn in order, so every pixel sees them in order.
func (r *rasterizer) drawTriangles(vs []render.Vertex) {
	positions := samplePositions[r.target.Samples()]
	tris := make([]vertexOut, 0, len(vs)/3*3)
	for i := 0; i+2 < len(vs); i += 3 {
		tris = append(tris, r.vertex(vs[i]), r.vertex(vs[i+1]), r.vertex(vs[i+2]))
	}
	parallel.ForEachBand(r.pool, r.target.Height(), bandRows, func(b parallel.Band) {
		coverage := make([]bool, len(positions))
		for i := 0; i+2 < len(tris); i += 3 {
			r.triangle(&tris[i], &tris[i+1], &tris[i+2], positions, b, coverage)
		}
	})
}

func (r *rasterizer) triangle(v0, v1, v2 *vertexOut, positions [][2]float32, band parallel.Band, coverage []bool) {
	area := edge(v0, v1, v2.x, v2.y)
	if area == 0 {
		return
	}
	if area < 0 {
		v1, v2 = v2, v1
		area = -area
	}

	minX := int(math.Floor(float64(min(v0.x, v1.x, v2.x))))
	maxX := int(math.Ceil(float64(max(v0.x, v1.x, v2.x))))
	minY := int(math.Floor(float64(min(v0.y, v1.y, v2.y))))
	maxY := int(math.Ceil(float64(max(v0.y, v1.y, v2.y))))
	minX, minY = max(minX, 0), max(minY, band.Y0)
	maxX, maxY = min(maxX, r.target.Width()-1), min(maxY, band.Y1-1)
	if minY > maxY {
		return
	}

	tl0, tl1, tl2 := topLeft(v1, v2), topLeft(v2, v0), topLeft(v0, v1)
	inside := func(px, py float32) bool {
		w0 := edge(v1, v2, px, py)
		w1 := edge(v2, v0, px, py)
		w2 := edge(v0, v1, px, py)
		return (w0 > 0 || (w0 == 0 && tl0)) &&
			(w1 > 0 || (w1 == 0 && tl1)) &&
			(w2 > 0 || (w2 == 0 && tl2))
	}

	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			covered := false
			for s, p := range positions {
				coverage[s] = inside(float32(x)+p[0], float32(y)+p[1])
				covered = covered || coverage[s]
			}
			if !covered {
				continue
			}

			// Shade once per pixel at its center.
			cx, cy := float32(x)+0.5, float32(y)+0.5
			l0 := edge(v1, v2, cx, cy) / area
			l1 := edge(v2, v0, cx, cy) / area
			l2 := 1 - l0 - l1
			ctx := shader.Context{
				X:        x,
				Y:        y,
				Pos:      lerp2(v0.pos, v1.pos, v2.pos, l0, l1, l2),
				TexCoord: lerp2(v0.texCoord, v1.texCoord, v2.texCoord, l0, l1, l2),
				Color:    v0.color.Scale(l0).Add(v1.color.Scale(l1)).Add(v2.color.Scale(l2)),
				Uniforms: &r.bindings.Uniforms,
				Textures: &r.sampler,
			}
			r.program.Run(&ctx)

			for s := range positions {
				if coverage[s] {
					dst := r.target.Load(x, y, s)
					r.target.Store(x, y, s, r.blend.Apply(ctx.Out, dst))
				}
			}
		}
	}
}

func lerp2(a, b, c [2]float32, l0, l1, l2 float32) [2]float32 {
	return [2]float32{
		a[0]*l0 + b[0]*l1 + c[0]*l2,
		a[1]*l0 + b[1]*l1 + c[1]*l2,
	}
}

// sampler serves the bound textures to fragment evaluators.
type sampler struct {
	textures [render.TextureSlotCount]*Texture
}

func (s *sampler) Sample(slot render.TextureSlot, u, v float32) render.Color {
	if t := s.textures[slot]; t != nil {
		return t.Sample(u, v)
	}
	return render.Transparent
}

func (s *sampler) Load(slot render.TextureSlot, x, y, sample int) render.Color {
	if t := s.textures[slot]; t != nil {
		return t.Load(x, y, sample)
	}
	return render.Transparent
}

func (s *sampler) Size(slot render.TextureSlot) (int, int) {
	if t := s.textures[slot]; t != nil {
		return t.Width(), t.Height()
	}
	return 1, 1
}
