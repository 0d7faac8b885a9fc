package gpu

import (
	"errors"
	"testing"
)

func TestNDRangeValidate(t *testing.T) {
	tests := []struct {
		name    string
		r       NDRange
		wantErr bool
	}{
		{"matmul", Range(128, 128).WithLocal(16, 16), false},
		{"no local", Range(640, 480), false},
		{"3d", Range(8, 8, 8).WithLocal(2, 4, 8), false},
		{"local larger than global", Range(8, 8).WithLocal(16, 16), true},
		{"not dividing", Range(100).WithLocal(16), true},
		{"rank mismatch", Range(16, 16).WithLocal(16), true},
		{"zero global", Range(0, 16), true},
		{"zero local", Range(16).WithLocal(0), true},
		{"empty", Range(), true},
		{"4d", Range(2, 2, 2, 2), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidWorkSize) {
					t.Errorf("Expected InvalidWorkSize, got %v", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate failed: %v", err)
			}
		})
	}
}

func TestNDRangeGeometry(t *testing.T) {
	r := Range(128, 64).WithLocal(16, 8)
	if r.Dims() != 2 {
		t.Errorf("Expected 2 dims, got %d", r.Dims())
	}
	if r.Items() != 128*64 {
		t.Errorf("Expected %d items, got %d", 128*64, r.Items())
	}
	g := r.Groups()
	if len(g) != 2 || g[0] != 8 || g[1] != 8 {
		t.Errorf("Expected groups [8 8], got %v", g)
	}
	if Range(10).Groups() != nil {
		t.Error("Expected nil groups without a local extent")
	}
}

func TestWithLocalDoesNotAlias(t *testing.T) {
	local := []int{4}
	r := Range(16).WithLocal(local...)
	local[0] = 5
	if r.Local[0] != 4 {
		t.Error("WithLocal kept a reference to the caller's slice")
	}
}
