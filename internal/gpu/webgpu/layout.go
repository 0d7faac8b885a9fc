package webgpu

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// binding is one resource a compute entry point declares in group 0.
type binding struct {
	index    int
	name     string
	uniform  bool
	readOnly bool
}

// entryPoint is a @compute function and the bindings of its module.
type entryPoint struct {
	name      string
	workgroup [3]int
}

var (
	computeRe = regexp.MustCompile(`@compute\s+@workgroup_size\(\s*([^)]*)\)\s*fn\s+([A-Za-z_][A-Za-z0-9_]*)`)
	bindingRe = regexp.MustCompile(`@group\(\s*(\d+)\s*\)\s*@binding\(\s*(\d+)\s*\)\s*var(?:<\s*([a-z_]+)\s*(?:,\s*([a-z_]+)\s*)?>)?\s+([A-Za-z_][A-Za-z0-9_]*)`)
)

// layout extracts entry points and group 0 bindings from WGSL source.
// Bindings must be numbered densely from 0; binding i is kernel argument i.
func layout(src string) ([]entryPoint, []binding, error) {
	var eps []entryPoint
	for _, m := range computeRe.FindAllStringSubmatch(src, -1) {
		wg := [3]int{1, 1, 1}
		parts := strings.Split(m[1], ",")
		if len(parts) > 3 {
			return nil, nil, fmt.Errorf("%s: workgroup size has %d dimensions", m[2], len(parts))
		}
		for i, p := range parts {
			p = strings.TrimSuffix(strings.TrimSpace(p), "u")
			if p == "" {
				continue
			}
			n, err := strconv.Atoi(p)
			if err != nil || n <= 0 {
				return nil, nil, fmt.Errorf("%s: workgroup size %q must be a positive literal", m[2], m[1])
			}
			wg[i] = n
		}
		eps = append(eps, entryPoint{name: m[2], workgroup: wg})
	}

	var binds []binding
	for _, m := range bindingRe.FindAllStringSubmatch(src, -1) {
		if m[1] != "0" {
			return nil, nil, fmt.Errorf("binding %s: only @group(0) is supported", m[5])
		}
		idx, _ := strconv.Atoi(m[2])
		b := binding{index: idx, name: m[5]}
		switch m[3] {
		case "uniform":
			b.uniform = true
		case "storage":
			b.readOnly = m[4] == "" || m[4] == "read"
		default:
			return nil, nil, fmt.Errorf("binding %s: unsupported address space %q", b.name, m[3])
		}
		binds = append(binds, b)
	}
	sort.Slice(binds, func(i, j int) bool { return binds[i].index < binds[j].index })
	for i, b := range binds {
		if b.index != i {
			return nil, nil, fmt.Errorf("bindings must be numbered 0..%d without gaps (found %d at position %d)",
				len(binds)-1, b.index, i)
		}
	}
	return eps, binds, nil
}
