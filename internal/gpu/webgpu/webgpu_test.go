//go:build !nogpu

package webgpu

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

func TestBuildLogFromNaga(t *testing.T) {
	p := &program{source: "@compute @workgroup_size(64) fn broken( {"}
	err := p.Build()
	if !errors.Is(err, driver.ErrBuildFailure) {
		t.Fatalf("Expected ErrBuildFailure, got %v", err)
	}
	log, _ := p.BuildLog()
	if log == "" {
		t.Error("Expected a non-empty build log")
	}
}

func TestWorkgroups(t *testing.T) {
	ep := entryPoint{name: "mm", workgroup: [3]int{16, 16, 1}}

	count, err := workgroups(ep, driver.NDRange{Global: []int{128, 128}, Local: []int{16, 16}})
	if err != nil {
		t.Fatalf("workgroups failed: %v", err)
	}
	if count != [3]uint32{8, 8, 1} {
		t.Errorf("Expected 8x8x1, got %v", count)
	}
	if _, err := workgroups(ep, driver.NDRange{Global: []int{128, 128}, Local: []int{8, 8}}); !errors.Is(err, driver.ErrInvalidWorkSize) {
		t.Errorf("Expected ErrInvalidWorkSize for a mismatched local extent, got %v", err)
	}
	count, err = workgroups(ep, driver.NDRange{Global: []int{100, 120}})
	if err != nil {
		t.Fatalf("workgroups failed: %v", err)
	}
	if count != [3]uint32{7, 8, 1} {
		t.Errorf("Expected rounded-up 7x8x1, got %v", count)
	}
}

func TestDispatchOnAdapter(t *testing.T) {
	plats, err := defaultDriver.Platforms()
	if err != nil || len(plats) == 0 {
		t.Skipf("no Vulkan adapter available: %v", err)
	}
	devs, _ := plats[0].Devices()
	cx, err := devs[0].CreateContext()
	if err != nil {
		t.Skipf("open device: %v", err)
	}
	defer cx.Release()
	q, _ := cx.CreateQueue()

	prog, _ := cx.CreateProgram(scaleWGSL)
	if err := prog.Build(); err != nil {
		log, _ := prog.BuildLog()
		t.Fatalf("Build failed: %v\n%s", err, log)
	}
	defer prog.Release()
	k, err := prog.CreateKernel("scale")
	if err != nil {
		t.Fatalf("CreateKernel failed: %v", err)
	}
	defer k.Release()

	const n = 256
	in := make([]byte, n*4)
	for i := 0; i < n; i++ {
		binary.LittleEndian.PutUint32(in[i*4:], math.Float32bits(float32(i)))
	}
	bin, _ := cx.CreateBuffer(n*4, driver.ReadOnly)
	defer bin.Release()
	bout, _ := cx.CreateBuffer(n*4, driver.WriteOnly)
	defer bout.Release()
	if err := q.WriteBuffer(bin, in); err != nil {
		t.Fatalf("WriteBuffer failed: %v", err)
	}

	three, _ := binary.Append(nil, binary.LittleEndian, float32(3))
	k.SetArg(0, driver.Arg{Buffer: bout})
	k.SetArg(1, driver.Arg{Buffer: bin})
	k.SetArg(2, driver.Arg{Value: float32(3), Bytes: three})
	if err := q.Dispatch(k, driver.NDRange{Global: []int{n}}); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	out := make([]byte, n*4)
	if err := q.ReadBuffer(bout, out); err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}
	for i := 0; i < n; i++ {
		got := math.Float32frombits(binary.LittleEndian.Uint32(out[i*4:]))
		if got != 3*float32(i) {
			t.Fatalf("out[%d] = %v, want %v", i, got, 3*float32(i))
		}
	}
}
