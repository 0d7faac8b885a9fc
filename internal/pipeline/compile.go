package pipeline

import (
	"fmt"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/kernels"
)

// Compiled is the outcome of building a standalone source file.
type Compiled struct {
	Path    string
	Source  string
	Kernels []string
}

// Compile builds the kernel source at path for the selected device without
// running it. The file's language must be the one the device compiles. The
// returned Compiled carries the source even when the build fails, so callers
// can show it next to the build log.
func Compile(cfg Config, path string) (out *Compiled, report *Report, err error) {
	r := newRun(cfg, "build")
	report = r.report
	out = &Compiled{Path: path}
	defer r.close(&err)

	lang, err := kernels.LanguageOf(path)
	if err != nil {
		return out, report, &gpu.Error{Kind: gpu.KindSourceUnavailable, Op: "load source", Err: err}
	}
	src, err := gpu.LoadSource(path)
	if err != nil {
		return out, report, err
	}
	out.Source = src

	if err := r.open(); err != nil {
		return out, report, err
	}
	if lang != r.dev.Language() {
		return out, report, &gpu.Error{Kind: gpu.KindSourceUnavailable, Op: "load source",
			Err: fmt.Errorf("%s is %s but %s compiles %s", path, lang, r.dev.Platform.Name(), r.dev.Language())}
	}

	err = r.stage("build", func() error {
		prog, err := r.cx.BuildProgram(src)
		if err != nil {
			return err
		}
		out.Kernels = prog.KernelNames()
		return nil
	})
	if err != nil {
		return out, report, err
	}
	r.log.Infof("built %s: %v", path, out.Kernels)
	return out, report, nil
}
