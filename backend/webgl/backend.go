//go:build js && wasm

package webgl

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"syscall/js"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/backend"
	"github.com/gogpu/gfx/gpucore"
)

// ErrNoWebGL2 is returned when the canvas cannot provide a WebGL2 context.
var ErrNoWebGL2 = errors.New("webgl: WebGL2 not available")

func init() {
	backend.Register(backend.BackendWebGL, func() backend.GraphicsBackend {
		return New(Options{})
	})
}

// Options configures the backend.
type Options struct {
	// Canvas is the HTML canvas element to render with. When undefined the
	// first canvas of the document is used, or a detached one is created.
	Canvas js.Value
}

// Backend is a GraphicsBackend on a WebGL2 rendering context. Commands
// run immediately; a render pass only groups them for error reporting.
type Backend struct {
	mu     sync.Mutex
	logger *slog.Logger
	opts   Options

	canvas js.Value
	gl     js.Value
	caps   backend.Capabilities

	initialized bool
	lost        bool
	nextID      uint64

	buffers   map[gpucore.BufferID]*glBuffer
	textures  map[gpucore.TextureID]*glTexture
	shaders   map[gpucore.ShaderID]*glShader
	pipelines map[gpucore.PipelineID]*glPipeline

	listeners   []js.Func
	lostFns     []func()
	restoredFns []func()
}

// New creates a backend. Call Init before use.
func New(opts Options) *Backend {
	b := &Backend{
		logger: gfx.ComponentLogger("webgl"),
		opts:   opts,
		caps:   backend.DefaultCapabilities(),
		nextID: 1,
	}
	b.caps.ShaderLanguage = backend.ShaderLanguageGLSL
	b.caps.DepthResolve = true
	b.resetLocked()
	return b
}

func (b *Backend) newID() uint64 {
	id := b.nextID
	b.nextID++
	return id
}

func (b *Backend) resetLocked() {
	b.buffers = make(map[gpucore.BufferID]*glBuffer)
	b.textures = make(map[gpucore.TextureID]*glTexture)
	b.shaders = make(map[gpucore.ShaderID]*glShader)
	b.pipelines = make(map[gpucore.PipelineID]*glPipeline)
}

// Name returns the backend identifier.
func (b *Backend) Name() string {
	return backend.BackendWebGL
}

// Init acquires the WebGL2 context and reads its limits.
func (b *Backend) Init() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized && !b.lost {
		return nil
	}
	if b.gl.IsUndefined() || b.gl.IsNull() {
		if err := b.openLocked(); err != nil {
			return err
		}
	}
	if b.gl.Call("isContextLost").Bool() {
		return backend.ErrDeviceLost
	}
	// Rendering to RG32F and RGBA16F needs float color buffers.
	if b.gl.Call("getExtension", "EXT_color_buffer_float").IsNull() {
		b.logger.Warn("EXT_color_buffer_float unavailable, float render targets will fail")
	}

	b.caps.MaxTextureDimension = uint32(b.gl.Call("getParameter", glMaxTextureSize).Int())
	b.caps.MaxSampleCount = min(uint32(b.gl.Call("getParameter", glMaxSamples).Int()), 8)
	b.caps.MinUniformOffsetAlignment = uint64(b.gl.Call("getParameter", glUniformBufferOffsetAlign).Int())
	b.initialized = true
	b.lost = false
	b.logger.Info("backend initialized",
		"renderer", b.gl.Call("getParameter", glRenderer).String(),
		"max_texture", b.caps.MaxTextureDimension)
	return nil
}

func (b *Backend) openLocked() error {
	canvas := b.opts.Canvas
	doc := js.Global().Get("document")
	if canvas.IsUndefined() || canvas.IsNull() {
		canvas = doc.Call("querySelector", "canvas")
	}
	if canvas.IsNull() {
		canvas = doc.Call("createElement", "canvas")
	}
	gl := canvas.Call("getContext", "webgl2", map[string]any{
		"antialias":             false,
		"depth":                 false,
		"preserveDrawingBuffer": false,
	})
	if gl.IsNull() || gl.IsUndefined() {
		return ErrNoWebGL2
	}
	b.canvas = canvas
	b.gl = gl

	lost := js.FuncOf(func(this js.Value, args []js.Value) any {
		// Without preventDefault the browser never restores the context.
		args[0].Call("preventDefault")
		go b.MarkLost()
		return nil
	})
	restored := js.FuncOf(func(this js.Value, args []js.Value) any {
		go func() {
			if err := b.Reopen(); err != nil {
				b.logger.Error("context restore failed", "err", err)
			}
		}()
		return nil
	})
	canvas.Call("addEventListener", "webglcontextlost", lost)
	canvas.Call("addEventListener", "webglcontextrestored", restored)
	b.listeners = append(b.listeners, lost, restored)
	return nil
}

// Close deletes every GL object and detaches the context listeners.
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.initialized && !b.lost {
		for _, p := range b.pipelines {
			b.gl.Call("deleteProgram", p.program)
		}
		for _, s := range b.shaders {
			s.delete(b.gl)
		}
		for _, t := range b.textures {
			t.delete(b.gl)
		}
		for _, buf := range b.buffers {
			b.gl.Call("deleteBuffer", buf.raw)
		}
	}
	b.resetLocked()
	if !b.canvas.IsUndefined() && len(b.listeners) == 2 {
		b.canvas.Call("removeEventListener", "webglcontextlost", b.listeners[0])
		b.canvas.Call("removeEventListener", "webglcontextrestored", b.listeners[1])
	}
	for _, fn := range b.listeners {
		fn.Release()
	}
	b.listeners = nil
	b.gl = js.Undefined()
	b.initialized = false
}

// Capabilities returns the limits read at Init.
func (b *Backend) Capabilities() backend.Capabilities {
	return b.caps
}

// OnContextLost registers fn to run on webglcontextlost.
func (b *Backend) OnContextLost(fn func()) {
	b.mu.Lock()
	b.lostFns = append(b.lostFns, fn)
	b.mu.Unlock()
}

// OnContextRestored registers fn to run after the context is restored.
func (b *Backend) OnContextRestored(fn func()) {
	b.mu.Lock()
	b.restoredFns = append(b.restoredFns, fn)
	b.mu.Unlock()
}

// MarkLost forgets every GL object and runs the loss callbacks.
func (b *Backend) MarkLost() {
	b.mu.Lock()
	if b.lost || !b.initialized {
		b.mu.Unlock()
		return
	}
	b.lost = true
	b.resetLocked()
	fns := append([]func(){}, b.lostFns...)
	b.mu.Unlock()

	b.logger.Warn("context lost")
	for _, fn := range fns {
		fn()
	}
}

// Reopen reinitializes a lost backend and runs the restore callbacks.
func (b *Backend) Reopen() error {
	b.mu.Lock()
	wasLost := b.lost
	b.mu.Unlock()

	if err := b.Init(); err != nil {
		return err
	}
	if !wasLost {
		return nil
	}
	b.mu.Lock()
	fns := append([]func(){}, b.restoredFns...)
	b.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
	return nil
}

func (b *Backend) checkLocked() error {
	if !b.initialized {
		return backend.ErrNotInitialized
	}
	if b.lost {
		return backend.ErrDeviceLost
	}
	return nil
}

// glError reports the pending GL error, if any.
func (b *Backend) glError(op string) error {
	if code := b.gl.Call("getError").Int(); code != 0 {
		return fmt.Errorf("webgl: %s: GL error 0x%04X", op, code)
	}
	return nil
}

// bytesToJS copies data into a new Uint8Array.
func bytesToJS(data []byte) js.Value {
	arr := js.Global().Get("Uint8Array").New(len(data))
	js.CopyBytesToJS(arr, data)
	return arr
}

// Ensure Backend implements the backend interfaces.
var (
	_ backend.GraphicsBackend     = (*Backend)(nil)
	_ backend.ContextLossNotifier = (*Backend)(nil)
)
