package gpu

import (
	"fmt"

	"github.com/gogpu/gfx/gpucore"
)

// Texture is a 2D GPU texture charged to the texture VRAM counter.
// Contents do not survive context loss; restore recreates an empty texture
// and its owner is expected to re-render it.
type Texture struct {
	dev  *Device
	desc gpucore.TextureDescriptor
	size uint64

	id        gpucore.TextureID
	destroyed bool
}

// CreateTexture allocates a texture immediately.
func (d *Device) CreateTexture(desc gpucore.TextureDescriptor) (*Texture, error) {
	if desc.Width == 0 || desc.Height == 0 {
		return nil, fmt.Errorf("%w: texture %q is %dx%d", ErrInvalidSize, desc.Label, desc.Width, desc.Height)
	}
	t := &Texture{dev: d, desc: desc, size: desc.SizeBytes()}
	if err := t.create(); err != nil {
		return nil, err
	}
	if err := d.track(t); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

func (t *Texture) create() error {
	if err := t.dev.check(); err != nil {
		return err
	}
	id, err := t.dev.backend.CreateTexture(&t.desc)
	if err != nil {
		return t.dev.wrap(fmt.Sprintf("create texture %q", t.desc.Label), err)
	}
	t.id = id
	t.dev.charge(MemoryTexture, t.size)
	return nil
}

// ID returns the backend texture, or gpucore.InvalidID while lost.
func (t *Texture) ID() gpucore.TextureID { return t.id }

// Descriptor returns the creation descriptor.
func (t *Texture) Descriptor() gpucore.TextureDescriptor { return t.desc }

// Width returns the width in pixels.
func (t *Texture) Width() uint32 { return t.desc.Width }

// Height returns the height in pixels.
func (t *Texture) Height() uint32 { return t.desc.Height }

// Format returns the texel format.
func (t *Texture) Format() gpucore.TextureFormat { return t.desc.Format }

// SizeBytes returns the tracked memory footprint.
func (t *Texture) SizeBytes() uint64 { return t.size }

// Read returns the texels of a single-sampled texture.
func (t *Texture) Read() ([]byte, error) {
	if t.destroyed {
		return nil, ErrDestroyed
	}
	if err := t.dev.check(); err != nil {
		return nil, err
	}
	data, err := t.dev.backend.ReadTexture(t.id)
	if err != nil {
		return nil, t.dev.wrap("read texture", err)
	}
	return data, nil
}

// ResolveInto resolves this multisampled texture into dst.
func (t *Texture) ResolveInto(dst *Texture) error {
	if t.destroyed || dst.destroyed {
		return ErrDestroyed
	}
	if err := t.dev.check(); err != nil {
		return err
	}
	return t.dev.wrap("resolve texture", t.dev.backend.ResolveTexture(t.id, dst.id))
}

// Destroy releases the texture. Calling Destroy more than once is a no-op.
func (t *Texture) Destroy() {
	if t == nil || t.destroyed {
		return
	}
	t.destroyed = true
	if t.id != gpucore.InvalidID {
		t.dev.backend.DestroyTexture(t.id)
		t.dev.release(MemoryTexture, t.size)
		t.id = gpucore.InvalidID
	}
	t.dev.untrack(t)
}

func (t *Texture) loseContext() {
	if t == nil || t.id == gpucore.InvalidID {
		return
	}
	t.id = gpucore.InvalidID
	t.dev.release(MemoryTexture, t.size)
}

func (t *Texture) restore() error {
	if t.destroyed || t.id != gpucore.InvalidID {
		return nil
	}
	return t.create()
}
