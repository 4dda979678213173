//go:build !rust

package rust

import "github.com/gogpu/gfx/backend"

// init registers a nil-returning factory when the rust tag is not set.
func init() {
	backend.Register(backend.BackendRust, func() backend.GraphicsBackend {
		return nil
	})
}
