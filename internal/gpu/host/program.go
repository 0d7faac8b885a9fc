package host

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"reflect"
	"sort"
	"strings"

	"github.com/cogentcore/yaegi/interp"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

type program struct {
	source string
	log    string
	built  bool
	funcs  map[string]reflect.Value
}

// Build compiles the source. Syntax and type errors fail the build and are
// kept for BuildLog.
func (p *program) Build() error {
	p.log, p.built, p.funcs = "", false, nil

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, "kernel.go", p.source, parser.AllErrors)
	if err != nil {
		p.log = err.Error()
		return fmt.Errorf("%w: parse", driver.ErrBuildFailure)
	}
	for _, imp := range file.Imports {
		path := strings.Trim(imp.Path.Value, `"`)
		if path != "clc" && path != "math" {
			p.log = fmt.Sprintf("%s: import %q not allowed in kernels (only clc and math)",
				fset.Position(imp.Pos()), path)
			return fmt.Errorf("%w: import", driver.ErrBuildFailure)
		}
	}

	in := interp.New(interp.Options{})
	if err := in.Use(symbols); err != nil {
		return fmt.Errorf("load kernel symbols: %w", err)
	}
	if _, err := evalSafe(in, p.source); err != nil {
		p.log = err.Error()
		return fmt.Errorf("%w: compile", driver.ErrBuildFailure)
	}

	funcs := make(map[string]reflect.Value)
	var problems []string
	for _, decl := range file.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !takesItem(fn) {
			continue
		}
		name := fn.Name.Name
		v, err := lookup(in, file.Name.Name, name)
		if err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s: %v", fset.Position(fn.Pos()), name, err))
			continue
		}
		if err := checkSignature(v.Type()); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %s: %v", fset.Position(fn.Pos()), name, err))
			continue
		}
		funcs[name] = v
	}
	if len(problems) > 0 {
		p.log = strings.Join(problems, "\n")
		return fmt.Errorf("%w: entry points", driver.ErrBuildFailure)
	}
	if len(funcs) == 0 {
		p.log = "no kernel entry points: declare a function whose first parameter is clc.Item"
		return fmt.Errorf("%w: no entry points", driver.ErrBuildFailure)
	}

	p.funcs = funcs
	p.built = true
	return nil
}

// evalSafe runs the interpreter, converting interpreter panics into errors.
func evalSafe(in *interp.Interpreter, src string) (v reflect.Value, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("interpreter panic: %v", r)
		}
	}()
	return in.Eval(src)
}

func lookup(in *interp.Interpreter, pkg, name string) (reflect.Value, error) {
	v, err := evalSafe(in, pkg+"."+name)
	if err != nil && pkg == "main" {
		v, err = evalSafe(in, name)
	}
	if err != nil {
		return reflect.Value{}, err
	}
	if v.Kind() != reflect.Func {
		return reflect.Value{}, errors.New("not a function")
	}
	return v, nil
}

// takesItem reports whether the declaration's first parameter is clc.Item.
func takesItem(fn *ast.FuncDecl) bool {
	if fn.Type.Params == nil || len(fn.Type.Params.List) == 0 {
		return false
	}
	sel, ok := fn.Type.Params.List[0].Type.(*ast.SelectorExpr)
	if !ok {
		return false
	}
	x, ok := sel.X.(*ast.Ident)
	return ok && x.Name == "clc" && sel.Sel.Name == "Item"
}

func checkSignature(t reflect.Type) error {
	if t.NumOut() != 0 {
		return errors.New("kernels must not return values")
	}
	if t.NumIn() == 0 || t.In(0) != itemType {
		return errors.New("first parameter must be clc.Item")
	}
	for i := 1; i < t.NumIn(); i++ {
		if _, err := paramKind(t.In(i)); err != nil {
			return fmt.Errorf("parameter %d: %w", i-1, err)
		}
	}
	return nil
}

func (p *program) BuildLog() (string, error) { return p.log, nil }

func (p *program) KernelNames() []string {
	names := make([]string, 0, len(p.funcs))
	for n := range p.funcs {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (p *program) CreateKernel(name string) (driver.Kernel, error) {
	if !p.built {
		return nil, errors.New("program not built")
	}
	fn, ok := p.funcs[name]
	if !ok {
		return nil, fmt.Errorf("no kernel named %q", name)
	}
	t := fn.Type()
	k := &kernel{name: name, fn: fn, params: make([]reflect.Type, t.NumIn()-1)}
	for i := range k.params {
		k.params[i] = t.In(i + 1)
	}
	k.args = make([]reflect.Value, len(k.params))
	k.bufs = make([]*buffer, len(k.params))
	return k, nil
}

func (p *program) Release() error {
	p.funcs = nil
	return nil
}
