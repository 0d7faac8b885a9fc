package gpu

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// Program is kernel source compiled for the context's device.
type Program struct {
	handle
	impl  driver.Program
	names []string
}

// LoadSource reads a kernel source file. A missing or unreadable file is a
// SourceUnavailable failure.
func LoadSource(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", newError(KindSourceUnavailable, "load source", err)
	}
	if len(strings.TrimSpace(string(b))) == 0 {
		return "", errorf(KindSourceUnavailable, "load source", "%s is empty", path)
	}
	return string(b), nil
}

// BuildProgram compiles source for the context's device. On a compile
// failure the backend's build log is queried separately and returned verbatim
// in the BuildError.
func (cx *Context) BuildProgram(source string) (*Program, error) {
	const op = "build program"
	if strings.TrimSpace(source) == "" {
		return nil, errorf(KindSourceUnavailable, op, "kernel source is empty")
	}
	if cx.isReleased() {
		return nil, errorf(KindBuildError, op, "context already released")
	}

	impl, err := cx.impl.CreateProgram(source)
	if err != nil {
		return nil, newError(KindBuildError, "create program", err)
	}
	p := &Program{impl: impl}
	p.handle = handle{cx: cx, what: "program", release: impl.Release}
	if err := cx.track(op, KindBuildError, p); err != nil {
		releaseOrWarn("program", impl.Release)
		return nil, err
	}

	if err := impl.Build(); err != nil {
		berr := &Error{Kind: KindBuildError, Op: op, Err: err}
		log, lerr := impl.BuildLog()
		switch {
		case lerr != nil:
			berr.Log = fmt.Sprintf("(build log unavailable: %v)", lerr)
			berr.Err = errors.Join(err, fmt.Errorf("query build log: %w", lerr))
		case strings.TrimSpace(log) == "":
			berr.Log = "(backend returned an empty build log)"
		default:
			berr.Log = log
		}
		if rerr := p.Release(); rerr != nil {
			slogger().Warnf("gpu: %v", rerr)
		}
		return nil, berr
	}

	p.names = impl.KernelNames()
	slogger().Debugf("gpu: program built with entry points %v", p.names)
	return p, nil
}

// KernelNames lists the program's entry points.
func (p *Program) KernelNames() []string {
	return append([]string(nil), p.names...)
}

// Kernel creates the named entry point. Arguments are bound positionally
// with SetArgs before dispatch.
func (p *Program) Kernel(name string) (*Kernel, error) {
	const op = "create kernel"
	if p.Released() {
		return nil, errorf(KindBuildError, op, "program already released")
	}
	impl, err := p.impl.CreateKernel(name)
	if err != nil {
		return nil, &Error{
			Kind: KindBuildError,
			Op:   op,
			Log:  fmt.Sprintf("entry point %q not found; available: %s", name, strings.Join(p.names, ", ")),
			Err:  err,
		}
	}
	k := &Kernel{name: name, impl: impl, bound: make([]bool, impl.NumArgs())}
	k.handle = handle{cx: p.cx, what: "kernel " + name, release: impl.Release}
	if err := p.cx.track(op, KindBuildError, k); err != nil {
		releaseOrWarn("kernel "+name, impl.Release)
		return nil, err
	}
	return k, nil
}
