package pass

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"

	"github.com/o2lab/racer/accesspath"
)

// pathOf maps an SSA value to the structural path of the location it
// denotes, when one exists. Free variables are numbered after the formal
// parameters so that closure captures translate through the same actual
// binding mechanism as ordinary arguments.
func pathOf(v ssa.Value) (accesspath.Path, bool) {
	switch v := v.(type) {
	case *ssa.Global:
		if v.Pkg == nil {
			return accesspath.GlobalVar(v.Name()), true
		}
		return accesspath.GlobalVar(v.Pkg.Pkg.Path() + "." + v.Name()), true
	case *ssa.Parameter:
		fn := v.Parent()
		for i, p := range fn.Params {
			if p == v {
				return accesspath.Parameter(i, v.Name()), true
			}
		}
		return accesspath.Path{}, false
	case *ssa.FreeVar:
		fn := v.Parent()
		for i, fv := range fn.FreeVars {
			if fv == v {
				return accesspath.Parameter(len(fn.Params)+i, v.Name()), true
			}
		}
		return accesspath.Path{}, false
	case *ssa.Alloc:
		return accesspath.LocalVar(v.Name()), true
	case *ssa.FieldAddr:
		base, ok := pathOf(v.X)
		if !ok {
			return accesspath.Path{}, false
		}
		return base.Field(fieldName(v.X.Type(), v.Field)), true
	case *ssa.IndexAddr:
		base, ok := pathOf(v.X)
		if !ok {
			return accesspath.Path{}, false
		}
		return base.Index(), true
	case *ssa.UnOp:
		if v.Op == token.MUL {
			return pathOf(v.X)
		}
		return accesspath.Path{}, false
	case *ssa.Call:
		// Call results live in registers; their paths exist so that return
		// attributes (ownership, functional, choices) can be attached.
		return accesspath.LocalVar(v.Name()), true
	case *ssa.Extract:
		return accesspath.LocalVar(v.Name()), true
	case *ssa.MakeClosure:
		return accesspath.LocalVar(v.Name()), true
	}
	return accesspath.Path{}, false
}

func fieldName(t types.Type, index int) string {
	if ptr, ok := t.Underlying().(*types.Pointer); ok {
		if st, ok := ptr.Elem().Underlying().(*types.Struct); ok {
			return st.Field(index).Name()
		}
	}
	return "?"
}
