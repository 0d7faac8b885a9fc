package host

import (
	"reflect"

	"github.com/cogentcore/yaegi/interp"
	"github.com/cogentcore/yaegi/stdlib"
)

// Item identifies one point of the index space. Kernels receive it as their
// first argument and query it like the work-item functions of other kernel
// languages. Dimensions beyond WorkDim report an ID of 0 and a size of 1.
type Item struct {
	dims   int
	global [3]int
	local  [3]int
	group  [3]int
	gsize  [3]int
	lsize  [3]int
}

func (it Item) WorkDim() int { return it.dims }

func (it Item) GlobalID(d int) int   { return at(it.global, d, 0) }
func (it Item) LocalID(d int) int    { return at(it.local, d, 0) }
func (it Item) GroupID(d int) int    { return at(it.group, d, 0) }
func (it Item) GlobalSize(d int) int { return at(it.gsize, d, 1) }
func (it Item) LocalSize(d int) int  { return at(it.lsize, d, 1) }

func (it Item) NumGroups(d int) int {
	return it.GlobalSize(d) / it.LocalSize(d)
}

func at(v [3]int, d, def int) int {
	if d < 0 || d > 2 {
		return def
	}
	return v[d]
}

var itemType = reflect.TypeOf(Item{})

// symbols is everything a kernel may import.
var symbols = interp.Exports{
	"clc/clc": {
		"Item": reflect.ValueOf((*Item)(nil)),
	},
	"math/math": stdlib.Symbols["math/math"],
}
