package webgpu

import (
	"strings"
	"testing"
)

const scaleWGSL = `
@group(0) @binding(0) var<storage, read_write> dst: array<f32>;
@group(0) @binding(1) var<storage, read> src: array<f32>;
@group(0) @binding(2) var<uniform> k: f32;

@compute @workgroup_size(64)
fn scale(@builtin(global_invocation_id) id: vec3<u32>) {
	dst[id.x] = src[id.x] * k;
}
`

func TestLayout(t *testing.T) {
	eps, binds, err := layout(scaleWGSL)
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	if len(eps) != 1 || eps[0].name != "scale" || eps[0].workgroup != [3]int{64, 1, 1} {
		t.Errorf("Unexpected entry points %+v", eps)
	}
	if len(binds) != 3 {
		t.Fatalf("Expected 3 bindings, got %d", len(binds))
	}
	if binds[0].readOnly || binds[0].uniform {
		t.Errorf("binding 0 should be read_write storage: %+v", binds[0])
	}
	if !binds[1].readOnly {
		t.Errorf("binding 1 should be read-only storage: %+v", binds[1])
	}
	if !binds[2].uniform {
		t.Errorf("binding 2 should be uniform: %+v", binds[2])
	}
}

func TestLayoutWorkgroup2D(t *testing.T) {
	eps, _, err := layout("@compute @workgroup_size(16, 16u) fn mm() {}")
	if err != nil {
		t.Fatalf("layout failed: %v", err)
	}
	if eps[0].workgroup != [3]int{16, 16, 1} {
		t.Errorf("Expected 16x16x1, got %v", eps[0].workgroup)
	}
}

func TestLayoutErrors(t *testing.T) {
	tests := map[string]string{
		"gap":      "@group(0) @binding(0) var<uniform> a: f32;\n@group(0) @binding(2) var<uniform> b: f32;",
		"group":    "@group(1) @binding(0) var<uniform> a: f32;",
		"override": "@compute @workgroup_size(WG) fn f() {}",
		"texture":  "@group(0) @binding(0) var<private> a: f32;",
	}
	for name, src := range tests {
		t.Run(name, func(t *testing.T) {
			if _, _, err := layout(src); err == nil {
				t.Errorf("Expected error for %q", strings.TrimSpace(src))
			}
		})
	}
}
