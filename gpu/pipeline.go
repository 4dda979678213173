package gpu

import (
	"fmt"

	"github.com/gogpu/gfx/gpucore"
)

// Pipeline is a render pipeline together with its shader source. The native
// objects are created on first use and recreated after a context loss.
type Pipeline struct {
	dev    *Device
	label  string
	source string
	desc   gpucore.RenderPipelineDescriptor

	shader    gpucore.ShaderID
	id        gpucore.PipelineID
	destroyed bool
}

// NewPipeline declares a pipeline. desc.Shader is ignored; the module is
// compiled from source.
func (d *Device) NewPipeline(label, source string, desc gpucore.RenderPipelineDescriptor) (*Pipeline, error) {
	if source == "" {
		return nil, fmt.Errorf("gpu: pipeline %q: empty shader source", label)
	}
	desc.Label = label
	p := &Pipeline{dev: d, label: label, source: source, desc: desc}
	if err := d.track(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Label returns the debug label.
func (p *Pipeline) Label() string { return p.label }

// Descriptor returns the pipeline descriptor.
func (p *Pipeline) Descriptor() gpucore.RenderPipelineDescriptor { return p.desc }

// ID returns the backend pipeline, creating it if needed.
func (p *Pipeline) ID() (gpucore.PipelineID, error) {
	if p.destroyed {
		return gpucore.InvalidID, ErrDestroyed
	}
	if p.id != gpucore.InvalidID {
		return p.id, nil
	}
	if err := p.dev.check(); err != nil {
		return gpucore.InvalidID, err
	}

	shader, err := p.dev.backend.CreateShaderModule(p.label, p.source)
	if err != nil {
		return gpucore.InvalidID, p.dev.wrap(fmt.Sprintf("shader %q", p.label), err)
	}
	desc := p.desc
	desc.Shader = shader
	id, err := p.dev.backend.CreateRenderPipeline(&desc)
	if err != nil {
		p.dev.backend.DestroyShaderModule(shader)
		return gpucore.InvalidID, p.dev.wrap(fmt.Sprintf("pipeline %q", p.label), err)
	}
	p.shader, p.id = shader, id
	p.dev.log.Debug("gpu: pipeline created", "label", p.label)
	return id, nil
}

// Destroy releases the native objects. Calling Destroy more than once is a
// no-op.
func (p *Pipeline) Destroy() {
	if p == nil || p.destroyed {
		return
	}
	p.destroyed = true
	p.release()
	p.dev.untrack(p)
}

func (p *Pipeline) release() {
	if p.id != gpucore.InvalidID {
		p.dev.backend.DestroyRenderPipeline(p.id)
	}
	if p.shader != gpucore.InvalidID {
		p.dev.backend.DestroyShaderModule(p.shader)
	}
	p.id, p.shader = gpucore.InvalidID, gpucore.InvalidID
}

func (p *Pipeline) loseContext() {
	if p == nil {
		return
	}
	p.id, p.shader = gpucore.InvalidID, gpucore.InvalidID
}

func (p *Pipeline) restore() error { return nil }
