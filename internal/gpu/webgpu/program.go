//go:build !nogpu

package webgpu

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

type program struct {
	cx     *context
	source string
	log    string
	eps    map[string]entryPoint
	binds  []binding
	module hal.ShaderModule
}

// Build validates the WGSL with naga, then creates the shader module. naga's
// diagnostics become the build log.
func (p *program) Build() error {
	p.log, p.eps, p.binds = "", nil, nil

	if _, err := naga.Compile(p.source); err != nil {
		p.log = err.Error()
		return fmt.Errorf("%w: %v", driver.ErrBuildFailure, err)
	}
	eps, binds, err := layout(p.source)
	if err != nil {
		p.log = err.Error()
		return fmt.Errorf("%w: %v", driver.ErrBuildFailure, err)
	}
	if len(eps) == 0 {
		p.log = "no @compute entry points"
		return fmt.Errorf("%w: no entry points", driver.ErrBuildFailure)
	}

	module, err := p.cx.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "kernelrun_module",
		Source: hal.ShaderSource{WGSL: p.source},
	})
	if err != nil {
		p.log = err.Error()
		return fmt.Errorf("%w: %v", driver.ErrBuildFailure, err)
	}

	p.module = module
	p.binds = binds
	p.eps = make(map[string]entryPoint, len(eps))
	for _, ep := range eps {
		p.eps[ep.name] = ep
	}
	return nil
}

func (p *program) BuildLog() (string, error) { return p.log, nil }

func (p *program) KernelNames() []string {
	names := make([]string, 0, len(p.eps))
	for n := range p.eps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *program) Release() error {
	if p.module != nil {
		p.cx.device.DestroyShaderModule(p.module)
		p.module = nil
	}
	return nil
}

func (p *program) CreateKernel(name string) (driver.Kernel, error) {
	if p.module == nil {
		return nil, errors.New("program not built")
	}
	ep, ok := p.eps[name]
	if !ok {
		return nil, fmt.Errorf("no entry point named %q", name)
	}

	dev := p.cx.device
	entries := make([]gputypes.BindGroupLayoutEntry, len(p.binds))
	for i, b := range p.binds {
		typ := gputypes.BufferBindingTypeStorage
		switch {
		case b.uniform:
			typ = gputypes.BufferBindingTypeUniform
		case b.readOnly:
			typ = gputypes.BufferBindingTypeReadOnlyStorage
		}
		entries[i] = gputypes.BindGroupLayoutEntry{
			Binding:    uint32(b.index), //nolint:gosec // small binding index
			Visibility: gputypes.ShaderStageCompute,
			Buffer:     &gputypes.BufferBindingLayout{Type: typ},
		}
	}

	k := &kernel{cx: p.cx, ep: ep, binds: p.binds, args: make([]driver.Arg, len(p.binds))}
	var err error
	k.bindLayout, err = dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: name + "_bind_layout", Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("create bind group layout: %w", err)
	}
	k.pipeLayout, err = dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label: name + "_pipe_layout", BindGroupLayouts: []hal.BindGroupLayout{k.bindLayout},
	})
	if err != nil {
		k.Release()
		return nil, fmt.Errorf("create pipeline layout: %w", err)
	}
	k.pipeline, err = dev.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label: name + "_pipeline", Layout: k.pipeLayout,
		Compute: hal.ComputeState{Module: p.module, EntryPoint: name},
	})
	if err != nil {
		k.Release()
		return nil, fmt.Errorf("create compute pipeline: %w", err)
	}
	return k, nil
}

type kernel struct {
	cx    *context
	ep    entryPoint
	binds []binding
	args  []driver.Arg

	bindLayout hal.BindGroupLayout
	pipeLayout hal.PipelineLayout
	pipeline   hal.ComputePipeline
}

func (k *kernel) Name() string { return k.ep.name }
func (k *kernel) NumArgs() int { return len(k.binds) }

func (k *kernel) SetArg(index int, a driver.Arg) error {
	b := k.binds[index]
	if a.IsBuffer() {
		if b.uniform {
			return fmt.Errorf("binding %s is a uniform, got a buffer", b.name)
		}
		if _, ok := a.Buffer.(*buffer); !ok {
			return fmt.Errorf("buffer belongs to another backend (%T)", a.Buffer)
		}
	} else if !b.uniform {
		return fmt.Errorf("binding %s is a storage buffer, got scalar %T", b.name, a.Value)
	}
	k.args[index] = a
	return nil
}

func (k *kernel) Release() error {
	dev := k.cx.device
	if k.pipeline != nil {
		dev.DestroyComputePipeline(k.pipeline)
	}
	if k.pipeLayout != nil {
		dev.DestroyPipelineLayout(k.pipeLayout)
	}
	if k.bindLayout != nil {
		dev.DestroyBindGroupLayout(k.bindLayout)
	}
	k.pipeline, k.pipeLayout, k.bindLayout = nil, nil, nil
	return nil
}
