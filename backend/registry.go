package backend

import (
	"sort"
	"sync"

	"github.com/gogpu/gfx"
)

// Backend name constants.
const (
	// BackendSoftware is the name of the in-memory reference backend.
	BackendSoftware = "software"
	// BackendNative is the name of the Pure Go GPU backend (gogpu/wgpu).
	BackendNative = "native"
	// BackendRust is the name of the wgpu-native backend (cogentcore/webgpu).
	BackendRust = "rust"
	// BackendWebGL is the name of the browser WebGL2 backend.
	BackendWebGL = "webgl"
)

// BackendFactory creates a new backend instance.
// A factory may return nil when the backend is compiled out.
type BackendFactory func() GraphicsBackend

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
	// Priority order for backend selection (first available wins).
	// Rust > Native > WebGL > Software (Software is the fallback).
	backendPriority = []string{BackendRust, BackendNative, BackendWebGL, BackendSoftware}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it will be replaced.
func Register(name string, factory BackendFactory) {
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
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get returns a backend instance by name.
// Returns nil if the backend is not registered or compiled out.
func Get(name string) GraphicsBackend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	factory, ok := backends[name]
	if !ok {
		return nil
	}
	return factory()
}

// Default returns the best available backend based on priority.
// Returns nil if no backends are registered.
func Default() GraphicsBackend {
	registryMu.RLock()
	defer registryMu.RUnlock()

	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			if b := factory(); b != nil {
				return b
			}
		}
	}

	// Fallback: return first available in name order
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if b := backends[name](); b != nil {
			return b
		}
	}

	return nil
}

// MustDefault returns the default backend or panics.
func MustDefault() GraphicsBackend {
	b := Default()
	if b == nil {
		panic("backend: no backend available")
	}
	return b
}

// Open returns the named backend initialized, or the default backend when
// name is empty. If the named backend fails to initialize, Open does not
// fall back; callers choose their own fallback policy.
func Open(name string) (GraphicsBackend, error) {
	if name == "" {
		return InitDefault()
	}
	b := Get(name)
	if b == nil {
		return nil, ErrBackendNotAvailable
	}
	if err := b.Init(); err != nil {
		return nil, err
	}
	gfx.Logger().Info("backend: opened", "name", b.Name())
	return b, nil
}

// InitDefault initializes the best available backend. Backends that fail
// to initialize are skipped in priority order.
func InitDefault() (GraphicsBackend, error) {
	registryMu.RLock()
	candidates := make([]BackendFactory, 0, len(backendPriority))
	for _, name := range backendPriority {
		if factory, ok := backends[name]; ok {
			candidates = append(candidates, factory)
		}
	}
	registryMu.RUnlock()

	for _, factory := range candidates {
		b := factory()
		if b == nil {
			continue
		}
		if err := b.Init(); err != nil {
			gfx.Logger().Warn("backend: init failed, trying next", "name", b.Name(), "err", err)
			continue
		}
		gfx.Logger().Info("backend: opened", "name", b.Name())
		return b, nil
	}

	return nil, ErrBackendNotAvailable
}
