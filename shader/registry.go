// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/compose/render"
)

// Compiler turns a generated program into a backend object. The returned
// value is stored in Program.Handle.
type Compiler interface {
	CompileProgram(p *Program) (any, error)
}

// Option configures registry construction.
type Option func(*options)

type options struct {
	validate bool
	logger   *slog.Logger
}

// WithValidation compiles every generated WGSL module to SPIR-V with naga
// before handing it to the backend, so that malformed sources fail at
// startup on every backend, not only on GPU ones.
func WithValidation() Option {
	return func(o *options) { o.validate = true }
}

// WithLogger sets the logger used while building.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l == nil {
			l = slog.New(nopHandler{})
		}
		o.logger = l
	}
}

// Registry maps variant and utility keys to compiled programs.
// It is immutable after NewRegistry returns.
type Registry struct {
	caps      render.Capabilities
	variants  map[render.VariantKey]*Program
	utilities map[UtilityKey]*Program
}

// NewRegistry builds and compiles every program reachable with caps.
func NewRegistry(caps render.Capabilities, c Compiler, opts ...Option) (*Registry, error) {
	o := options{logger: slog.New(nopHandler{})}
	for _, opt := range opts {
		opt(&o)
	}
	if err := caps.Validate(); err != nil {
		return nil, err
	}
	if c == nil {
		return nil, fmt.Errorf("%w: nil shader compiler", render.ErrConfiguration)
	}

	r := &Registry{
		caps:      caps,
		variants:  make(map[render.VariantKey]*Program),
		utilities: make(map[UtilityKey]*Program),
	}

	compile := func(p *Program) error {
		if o.validate {
			if _, err := CompileSPIRV(p.Source); err != nil {
				return fmt.Errorf("%w: %s: %w", render.ErrConfiguration, p.Label, err)
			}
		}
		h, err := c.CompileProgram(p)
		if err != nil {
			return fmt.Errorf("%w: compile %s: %w", render.ErrConfiguration, p.Label, err)
		}
		p.Handle = h
		return nil
	}

	for _, k := range ReachableKeys(caps) {
		p, err := BuildVariant(k)
		if err != nil {
			return nil, err
		}
		if err := compile(p); err != nil {
			return nil, err
		}
		r.variants[k] = p
	}
	for _, k := range ReachableUtilities(caps) {
		p, err := BuildUtility(k)
		if err != nil {
			return nil, err
		}
		if err := compile(p); err != nil {
			return nil, err
		}
		r.utilities[k] = p
	}

	o.logger.LogAttrs(context.Background(), slog.LevelInfo, "shader: registry built",
		slog.Int("variants", len(r.variants)),
		slog.Int("utilities", len(r.utilities)),
		slog.Any("samples", caps.SampleCounts))
	return r, nil
}

// ReachableKeys lists every variant key a driver on a backend with caps
// can request, in a deterministic order.
func ReachableKeys(caps render.Capabilities) []render.VariantKey {
	var keys []render.VariantKey
	for _, fill := range render.FillKinds {
		for _, samples := range caps.SampleCounts {
			for _, erase := range []bool{false, true} {
				for _, clip := range []bool{false, true} {
					for _, alpha := range caps.AlphaModes() {
						for _, adjust := range render.BlendAdjusts {
							keys = append(keys, render.VariantKey{
								Fill: fill, Samples: samples,
								Erase: erase, Clip: clip,
								Alpha: alpha, Adjust: adjust,
							})
						}
					}
				}
			}
		}
	}
	return keys
}

// ReachableUtilities lists every utility key needed on a backend with caps.
// Backends with fixed-function resolve only need single-sample resolve
// programs: the blit averages samples before the program runs.
func ReachableUtilities(caps render.Capabilities) []UtilityKey {
	var keys []UtilityKey
	for _, s := range caps.SampleCounts {
		keys = append(keys, UtilityKey{Kind: UtilCoverage, Samples: s})
		if caps.FixedFunctionResolve && s > 1 {
			continue
		}
		for _, p := range render.AlphaPolicies {
			for _, unpremultiply := range []bool{false, true} {
				keys = append(keys, UtilityKey{Kind: UtilResolve, Samples: s, Policy: p, Flag: unpremultiply})
			}
		}
	}
	keys = append(keys,
		UtilityKey{Kind: UtilBlur},
		UtilityKey{Kind: UtilAlpha},
		UtilityKey{Kind: UtilAlpha, Flag: true},
		UtilityKey{Kind: UtilMask},
		UtilityKey{Kind: UtilDisplace},
		UtilityKey{Kind: UtilDisplace, Flag: true},
		UtilityKey{Kind: UtilReduce},
	)
	return keys
}

// BuildVariant generates the program for a draw variant.
func BuildVariant(k render.VariantKey) (*Program, error) {
	if k.Samples < 1 {
		return nil, fmt.Errorf("%w: variant %v has no sample count", render.ErrConfiguration, k)
	}
	fill, err := fillFragment(k.Fill)
	if err != nil {
		return nil, err
	}
	frags := []Fragment{fill}
	// An adjustment encodes the output itself and needs straight input.
	adjust, adjusted := adjustFragment(k.Adjust)
	premultiplied := k.Alpha == render.AlphaPremultiplied && !adjusted
	if premultiplied {
		frags = append(frags, premultiply)
	}
	if k.Erase {
		frags = append(frags, eraseFragment(k.Samples, premultiplied))
	}
	if k.Clip {
		frags = append(frags, clipFragment(k.Samples, premultiplied))
	}
	if adjusted {
		frags = append(frags, adjust)
	}
	return newProgram("draw:"+k.String(), k.Samples, k.Samples, frags), nil
}

// BuildUtility generates a utility program.
func BuildUtility(k UtilityKey) (*Program, error) {
	label := "util:" + k.String()
	switch k.Kind {
	case UtilCoverage:
		if k.Samples < 1 {
			return nil, fmt.Errorf("%w: %s without sample count", render.ErrConfiguration, label)
		}
		return newProgram(label, k.Samples, k.Samples, []Fragment{coverage}), nil
	case UtilResolve:
		if k.Samples < 1 {
			return nil, fmt.Errorf("%w: %s without sample count", render.ErrConfiguration, label)
		}
		frags := []Fragment{resolveFragment(k.Samples, k.Flag)}
		if f, ok := policyFragment(k.Policy); ok {
			frags = append(frags, f)
		}
		return newProgram(label, k.Samples, 1, frags), nil
	case UtilBlur:
		return newProgram(label, 1, 1, []Fragment{blur}), nil
	case UtilAlpha:
		frags := []Fragment{alphaAdjust}
		if k.Flag {
			frags = append(frags, invertAlpha)
		}
		return newProgram(label, 1, 1, frags), nil
	case UtilMask:
		return newProgram(label, 1, 1, []Fragment{maskFilter}), nil
	case UtilDisplace:
		return newProgram(label, 1, 1, []Fragment{displaceFragment(k.Flag)}), nil
	case UtilReduce:
		return newProgram(label, 1, 1, []Fragment{sampleSource}), nil
	}
	return nil, fmt.Errorf("%w: unknown utility %v", render.ErrConfiguration, k.Kind)
}

// Lookup returns the program for a draw variant. A miss means the driver
// requested a key outside the capabilities the registry was built for.
func (r *Registry) Lookup(k render.VariantKey) (*Program, error) {
	p, ok := r.variants[k]
	if !ok {
		return nil, fmt.Errorf("%w: no program for variant %v", render.ErrConfiguration, k)
	}
	return p, nil
}

// Utility returns a utility program.
func (r *Registry) Utility(k UtilityKey) (*Program, error) {
	p, ok := r.utilities[k]
	if !ok {
		return nil, fmt.Errorf("%w: no utility program %v", render.ErrConfiguration, k)
	}
	return p, nil
}

// HasSamples reports whether mask coverage and mask-reading variants exist
// for the sample count n.
func (r *Registry) HasSamples(n int) bool {
	_, ok := r.utilities[UtilityKey{Kind: UtilCoverage, Samples: n}]
	return ok
}

// Capabilities returns the capabilities the registry was built for.
func (r *Registry) Capabilities() render.Capabilities {
	return r.caps
}

// Len returns the number of draw variants.
func (r *Registry) Len() int {
	return len(r.variants)
}

// Programs returns every program, variants first, sorted by label.
func (r *Registry) Programs() []*Program {
	out := make([]*Program, 0, len(r.variants)+len(r.utilities))
	for _, p := range r.variants {
		out = append(out, p)
	}
	for _, p := range r.utilities {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b *Program) int { return cmp.Compare(a.Label, b.Label) })
	return out
}
