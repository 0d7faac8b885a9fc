// Package pipeline runs the bundled kernel programs end to end: device
// discovery, context creation, program build, buffer setup, dispatch and
// result retrieval. Every run releases what it acquired, whether it succeeds
// or fails at any stage.
package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/kernels"
	"github.com/xupit3r/kernelrun/internal/logging"
)

// Config selects where a pipeline runs and which kernel sources it builds.
type Config struct {
	Selection gpu.Selection

	// KernelDir, when set, replaces the bundled sources with files from
	// this directory named like the bundled ones (matmul.cl, ...).
	KernelDir string
}

// Stage is one timed step of a run.
type Stage struct {
	Name    string
	Elapsed time.Duration
}

// Report describes a completed or failed run.
type Report struct {
	Pipeline   string
	Platform   string
	Device     string
	Language   string
	EntryPoint string
	Range      string
	Stages     []Stage
	Total      time.Duration
}

func (r *Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s on %s (%s) [%s]", r.Pipeline, r.Device, r.Platform, r.Language)
	for _, s := range r.Stages {
		fmt.Fprintf(&b, "\n  %-10s %v", s.Name, s.Elapsed.Round(time.Microsecond))
	}
	fmt.Fprintf(&b, "\n  %-10s %v", "total", r.Total.Round(time.Microsecond))
	return b.String()
}

// run carries the state shared by every pipeline stage.
type run struct {
	cfg    Config
	report *Report
	log    *logrus.Entry
	start  time.Time

	dev *gpu.Device
	cx  *gpu.Context
}

func newRun(cfg Config, name string) *run {
	return &run{
		cfg:    cfg,
		report: &Report{Pipeline: name},
		log:    logging.WithFields(logrus.Fields{"pipeline": name}),
		start:  time.Now(),
	}
}

// stage times fn and records it in the report.
func (r *run) stage(name string, fn func() error) error {
	t := time.Now()
	err := fn()
	elapsed := time.Since(t)
	r.report.Stages = append(r.report.Stages, Stage{Name: name, Elapsed: elapsed})
	if err != nil {
		r.log.WithField("stage", name).Debugf("failed after %v: %v", elapsed, err)
		return err
	}
	r.log.WithField("stage", name).Debugf("done in %v", elapsed)
	return nil
}

// open discovers the device and creates the context. The caller must
// defer close.
func (r *run) open() error {
	err := r.stage("discover", func() error {
		dev, err := gpu.Discover(r.cfg.Selection)
		if err != nil {
			return err
		}
		r.dev = dev
		r.report.Platform = dev.Platform.Name()
		r.report.Device = dev.Name()
		r.report.Language = string(dev.Language())
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Infof("running on %s", r.dev)
	return r.stage("context", func() error {
		cx, err := gpu.NewContext(r.dev)
		r.cx = cx
		return err
	})
}

// close releases the context and everything created in it, folding a
// release failure into err.
func (r *run) close(err *error) {
	if r.cx != nil {
		if rerr := r.cx.Release(); rerr != nil {
			r.log.Warnf("release: %v", rerr)
			if *err == nil {
				*err = rerr
			}
		}
	}
	r.report.Total = time.Since(r.start)
}

// source resolves the program source for the selected device's language.
func (r *run) source(name string) (string, error) {
	lang := r.dev.Language()
	if r.cfg.KernelDir != "" {
		path, err := kernels.Path(r.cfg.KernelDir, lang, name)
		if err != nil {
			return "", &gpu.Error{Kind: gpu.KindSourceUnavailable, Op: "load source", Err: err}
		}
		return gpu.LoadSource(path)
	}
	src, err := kernels.Source(lang, name)
	if err != nil {
		return "", &gpu.Error{Kind: gpu.KindSourceUnavailable, Op: "load source", Err: err}
	}
	return src, nil
}

// kernel builds program name and creates its entry point.
func (r *run) kernel(name string) (*gpu.Kernel, error) {
	ep, err := kernels.EntryPoint(name)
	if err != nil {
		return nil, &gpu.Error{Kind: gpu.KindSourceUnavailable, Op: "load source", Err: err}
	}
	r.report.EntryPoint = ep

	var k *gpu.Kernel
	err = r.stage("build", func() error {
		src, err := r.source(name)
		if err != nil {
			return err
		}
		prog, err := r.cx.BuildProgram(src)
		if err != nil {
			if log, ok := gpu.BuildLog(err); ok {
				r.log.Errorf("build log:\n%s", log)
			}
			return err
		}
		k, err = prog.Kernel(ep)
		return err
	})
	return k, err
}

// dispatch launches k over nd and records the range in the report.
func (r *run) dispatch(k *gpu.Kernel, nd gpu.NDRange) error {
	r.report.Range = nd.String()
	return r.stage("dispatch", func() error {
		return r.cx.Queue().Dispatch(k, nd)
	})
}

var errShape = errors.New("shape mismatch")

func shapeError(format string, args ...any) error {
	return &gpu.Error{Kind: gpu.KindTransferError, Op: "check shapes", Err: fmt.Errorf("%w: "+format, append([]any{errShape}, args...)...)}
}
