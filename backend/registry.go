package backend

import (
	"fmt"
	"slices"
	"sync"
)

// Backend names.
const (
	BackendNative   = "native"
	BackendSoftware = "software"
	BackendCompat   = "compat"
)

// Factory creates a new device instance.
type Factory func() (Device, error)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for backend selection (first available wins).
	// Native > Software > Compat (Compat trades precision for reach).
	backendPriority = []string{BackendNative, BackendSoftware, BackendCompat}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the sorted names of registered backends.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Open creates a device by name.
func Open(name string) (Device, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	return factory()
}

// Default opens the best available backend based on priority.
// Backends whose factory fails (for example a GPU backend on a machine
// without an adapter) are skipped.
func Default() (Device, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var errs []error
	for _, name := range backendPriority {
		factory, ok := backends[name]
		if !ok {
			continue
		}
		d, err := factory()
		if err == nil && d != nil {
			return d, nil
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	// Fallback: first available in name order.
	names := make([]string, 0, len(backends))
	for name := range backends {
		if !slices.Contains(backendPriority, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	for _, name := range names {
		if d, err := backends[name](); err == nil && d != nil {
			return d, nil
		}
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrBackendNotAvailable, errs)
	}
	return nil, ErrBackendNotAvailable
}
