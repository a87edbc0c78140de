// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package resource owns every backend texture and vertex buffer of a
// composition device. Other packages hold generation-checked handles.
package resource

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gogpu/compose/backend"
	"github.com/gogpu/compose/render"
	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Default memory limits.
const (
	// DefaultBudgetBytes is the default device memory budget (256 MB).
	DefaultBudgetBytes = 256 << 20

	// DefaultEvictionThreshold is when eviction starts (80% of budget).
	DefaultEvictionThreshold = 0.8

	// MinBudgetBytes is the minimum allowed budget (1 MB).
	MinBudgetBytes = 1 << 20
)

// Config configures a Manager.
type Config struct {
	// BudgetBytes is the total memory budget. Defaults to
	// DefaultBudgetBytes if zero; raised to MinBudgetBytes if smaller.
	BudgetBytes uint64

	// EvictionThreshold is the usage fraction above which evictable
	// resources are released before new allocations. Defaults to
	// DefaultEvictionThreshold if outside (0, 1].
	EvictionThreshold float64

	Logger *slog.Logger
}

// MemoryStats contains memory usage statistics.
type MemoryStats struct {
	TotalBytes     uint64
	UsedBytes      uint64
	AvailableBytes uint64
	Textures       int
	Buffers        int
	Evictable      int
	Evictions      uint64
	Utilization    float64
}

// String returns a human-readable string of memory stats.
func (s MemoryStats) String() string {
	return fmt.Sprintf("Memory[%.1f%% used, %d/%d KB, %d textures, %d buffers, %d evictions]",
		s.Utilization*100, s.UsedBytes>>10, s.TotalBytes>>10, s.Textures, s.Buffers, s.Evictions)
}

type kind uint8

const (
	kindTexture kind = iota + 1
	kindVertices
)

type entry struct {
	kind      kind
	gen       uint32
	texture   render.Texture
	desc      render.TextureDescriptor
	buffer    backend.Buffer
	sizeBytes uint64
	evictable bool
	frame     bool // released by EndFrame
	onEvict   func()
}

// Option configures a texture allocation.
type Option func(*entry)

// Evictable lets the manager release the texture under memory pressure.
// Later lookups of an evicted handle fail with ErrStaleHandle.
func Evictable() Option {
	return func(e *entry) { e.evictable = true }
}

// OnEvict registers f to run after the texture is evicted. f runs with
// the manager locked and must not call back into it.
func OnEvict(f func()) Option {
	return func(e *entry) { e.onEvict = f }
}

// Manager tracks allocations against a byte budget and evicts evictable
// textures in least-recently-used order.
//
// Manager is safe for concurrent use.
type Manager struct {
	mu sync.Mutex

	dev       backend.Device
	budget    uint64
	threshold float64
	logger    *slog.Logger

	entries []entry // index 0 unused so the zero Handle is invalid
	free    []uint32
	lru     *simplelru.LRU[Handle, struct{}]
	frame   []Handle

	used      uint64
	textures  int
	buffers   int
	evictions uint64
	closed    bool
}

// New returns a manager that allocates from dev.
func New(dev backend.Device, cfg Config) *Manager {
	budget := cfg.BudgetBytes
	if budget == 0 {
		budget = DefaultBudgetBytes
	}
	budget = max(budget, MinBudgetBytes)

	threshold := cfg.EvictionThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultEvictionThreshold
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(nopHandler{})
	}

	m := &Manager{
		dev:       dev,
		budget:    budget,
		threshold: threshold,
		logger:    logger,
		entries:   make([]entry, 1),
	}
	// Ordering only; the byte budget bounds the population.
	m.lru, _ = simplelru.NewLRU[Handle, struct{}](math.MaxInt32, nil)
	return m
}

// Device returns the device the manager allocates from.
func (m *Manager) Device() backend.Device {
	return m.dev
}

// CreateTexture allocates a texture. It fails with ErrCapabilityMismatch
// if the device cannot create it and with ErrResourceExhausted if the
// budget cannot hold it even after eviction.
func (m *Manager) CreateTexture(desc render.TextureDescriptor, opts ...Option) (Handle, error) {
	if err := desc.Validate(m.dev.Capabilities()); err != nil {
		return Handle{}, err
	}
	e := entry{kind: kindTexture, desc: desc, sizeBytes: desc.SizeBytes()}
	for _, opt := range opts {
		opt(&e)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Handle{}, backend.ErrClosed
	}
	if err := m.reserveLocked(e.sizeBytes); err != nil {
		return Handle{}, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	tex, err := m.dev.CreateTexture(desc)
	if err != nil {
		return Handle{}, err
	}
	e.texture = tex
	m.textures++
	return m.insertLocked(e), nil
}

// UploadVertices copies a batch into a vertex buffer. Frame-bound
// buffers are released by EndFrame; retained ones live until Free.
func (m *Manager) UploadVertices(vs []render.Vertex, retained bool) (Handle, error) {
	data := render.AppendVertices(make([]byte, 0, len(vs)*render.VertexStride), vs...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Handle{}, backend.ErrClosed
	}
	size := uint64(len(data))
	if err := m.reserveLocked(size); err != nil {
		return Handle{}, fmt.Errorf("vertex buffer: %w", err)
	}
	buf, err := m.dev.CreateBuffer(data)
	if err != nil {
		return Handle{}, err
	}
	m.buffers++
	h := m.insertLocked(entry{kind: kindVertices, buffer: buf, sizeBytes: size, frame: !retained})
	if !retained {
		m.frame = append(m.frame, h)
	}
	return h, nil
}

// Texture returns the backend texture of h.
func (m *Manager) Texture(h Handle) (render.Texture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupLocked(h, kindTexture)
	if err != nil {
		return nil, err
	}
	if e.evictable {
		m.lru.Get(h)
	}
	return e.texture, nil
}

// Descriptor returns the creation descriptor of texture h.
func (m *Manager) Descriptor(h Handle) (render.TextureDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupLocked(h, kindTexture)
	if err != nil {
		return render.TextureDescriptor{}, err
	}
	return e.desc, nil
}

// Vertices returns the vertex buffer of h.
func (m *Manager) Vertices(h Handle) (backend.Buffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupLocked(h, kindVertices)
	if err != nil {
		return nil, err
	}
	return e.buffer, nil
}

// Valid reports whether h still refers to a live resource.
func (m *Manager) Valid(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.validLocked(h)
}

// Touch marks an evictable texture as recently used.
func (m *Manager) Touch(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.validLocked(h) {
		m.lru.Get(h)
	}
}

// Retain makes an evictable texture permanent.
func (m *Manager) Retain(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, err := m.lookupLocked(h, kindTexture)
	if err != nil {
		return err
	}
	e.evictable = false
	m.lru.Remove(h)
	return nil
}

// Free releases h. Freeing a stale handle fails with ErrStaleHandle.
func (m *Manager) Free(h Handle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.validLocked(h) {
		return fmt.Errorf("%w: free %v", render.ErrStaleHandle, h)
	}
	m.releaseLocked(h)
	return nil
}

// EndFrame releases every frame-bound vertex buffer.
func (m *Manager) EndFrame() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.frame {
		if m.validLocked(h) {
			m.releaseLocked(h)
		}
	}
	m.frame = m.frame[:0]
}

// Stats returns current memory usage statistics.
func (m *Manager) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryStats{
		TotalBytes:     m.budget,
		UsedBytes:      m.used,
		AvailableBytes: m.budget - m.used,
		Textures:       m.textures,
		Buffers:        m.buffers,
		Evictable:      m.lru.Len(),
		Evictions:      m.evictions,
		Utilization:    float64(m.used) / float64(m.budget),
	}
}

// Close releases every resource. Handles become stale.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	for i := 1; i < len(m.entries); i++ {
		if m.entries[i].kind != 0 {
			m.releaseLocked(Handle{index: uint32(i), gen: m.entries[i].gen})
		}
	}
	m.frame = nil
	m.closed = true
}

func (m *Manager) insertLocked(e entry) Handle {
	var idx uint32
	if n := len(m.free); n > 0 {
		idx = m.free[n-1]
		m.free = m.free[:n-1]
		e.gen = m.entries[idx].gen
		m.entries[idx] = e
	} else {
		idx = uint32(len(m.entries))
		e.gen = 1
		m.entries = append(m.entries, e)
	}
	m.used += e.sizeBytes
	h := Handle{index: idx, gen: e.gen}
	if e.evictable {
		m.lru.Add(h, struct{}{})
	}
	return h
}

func (m *Manager) validLocked(h Handle) bool {
	if h.index == 0 || int(h.index) >= len(m.entries) {
		return false
	}
	e := &m.entries[h.index]
	return e.kind != 0 && e.gen == h.gen
}

func (m *Manager) lookupLocked(h Handle, k kind) (*entry, error) {
	if m.closed {
		return nil, backend.ErrClosed
	}
	if !m.validLocked(h) {
		return nil, fmt.Errorf("%w: %v", render.ErrStaleHandle, h)
	}
	e := &m.entries[h.index]
	if e.kind != k {
		return nil, fmt.Errorf("%w: %v is not a %s", render.ErrConfiguration, h, k)
	}
	return e, nil
}

// releaseLocked destroys the backend object of a valid handle and bumps
// the slot generation so that h goes stale.
func (m *Manager) releaseLocked(h Handle) {
	e := &m.entries[h.index]
	switch e.kind {
	case kindTexture:
		m.dev.DestroyTexture(e.texture)
		m.textures--
	case kindVertices:
		m.dev.DestroyBuffer(e.buffer)
		m.buffers--
	}
	if e.evictable {
		m.lru.Remove(h)
	}
	m.used -= e.sizeBytes
	gen := e.gen + 1
	*e = entry{gen: gen}
	m.free = append(m.free, h.index)
}

// reserveLocked evicts least recently used evictable textures until n
// more bytes stay under the eviction threshold, and fails if they do not
// fit the budget.
func (m *Manager) reserveLocked(n uint64) error {
	if n > m.budget {
		return fmt.Errorf("%w: %d bytes exceed the %d byte budget", render.ErrResourceExhausted, n, m.budget)
	}
	soft := uint64(float64(m.budget) * m.threshold)
	for m.used+n > soft {
		h, _, ok := m.lru.GetOldest()
		if !ok {
			break
		}
		onEvict := m.entries[h.index].onEvict
		size := m.entries[h.index].sizeBytes
		m.releaseLocked(h)
		m.evictions++
		m.logger.Debug("resource: evicted texture", "handle", h, "bytes", size)
		if onEvict != nil {
			onEvict()
		}
	}
	if m.used+n > m.budget {
		return fmt.Errorf("%w: need %d bytes, %d available", render.ErrResourceExhausted, n, m.budget-m.used)
	}
	return nil
}

func (k kind) String() string {
	switch k {
	case kindTexture:
		return "texture"
	case kindVertices:
		return "vertex buffer"
	}
	return "free slot"
}
