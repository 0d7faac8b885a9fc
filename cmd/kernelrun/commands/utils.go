package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/xupit3r/kernelrun/internal/gpu"
	"github.com/xupit3r/kernelrun/internal/pipeline"
	"github.com/xupit3r/kernelrun/internal/tui"
)

// printError writes err as "error: <Kind>: <message>", followed by the build
// log when there is one.
func printError(w io.Writer, err error) {
	fmt.Fprintln(w, theme.Error("error: "+err.Error()))
	if log, ok := gpu.BuildLog(err); ok {
		fmt.Fprintln(w, theme.Title("build log:"))
		fmt.Fprintln(w, strings.TrimRight(log, "\n"))
	}
}

// printReport writes the device and per-stage timings of a run.
func printReport(w io.Writer, r *pipeline.Report) {
	if r == nil {
		return
	}
	fmt.Fprintln(w, theme.Title(r.Pipeline))
	if r.Device != "" {
		fmt.Fprintln(w, theme.Field("platform", r.Platform))
		fmt.Fprintln(w, theme.Field("device", r.Device))
		fmt.Fprintln(w, theme.Field("language", r.Language))
	}
	if r.EntryPoint != "" {
		fmt.Fprintln(w, theme.Field("kernel", r.EntryPoint))
	}
	if r.Range != "" {
		fmt.Fprintln(w, theme.Field("range", r.Range))
	}
	stages := make([]tui.Stage, len(r.Stages))
	for i, s := range r.Stages {
		stages[i] = tui.Stage{Name: s.Name, Elapsed: s.Elapsed}
	}
	fmt.Fprint(w, theme.Dim("timings")+"\n"+theme.Timings(stages, r.Total))
}
