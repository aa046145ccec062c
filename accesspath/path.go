// Package accesspath defines structural identifiers for storage locations.
//
// A path names a location reachable from a local variable, formal parameter,
// free variable or global through a chain of field and index projections,
// e.g. q.buf[*].head. Paths are compared structurally and carry no aliasing
// information: two distinct paths may denote the same memory at run time.
package accesspath

import (
	"fmt"
	"strings"
)

// RootKind classifies the variable a path starts from.
type RootKind int

const (
	Local RootKind = iota
	Param
	Global
)

// Root is the base variable of a path. Roots are comparable; a Param root
// additionally carries the formal parameter position so that callers can
// rebase callee paths onto actual arguments.
type Root struct {
	Kind  RootKind
	Name  string
	Index int // formal position when Kind is Param, -1 otherwise
}

func (r Root) String() string {
	if r.Kind == Param {
		return fmt.Sprintf("%s#%d", r.Name, r.Index)
	}
	return r.Name
}

// Path identifies a storage location as a root plus a canonical projection
// chain. The zero Path is invalid. Path is comparable and usable as a map key.
type Path struct {
	root  Root
	projs string
}

// LocalVar returns a path rooted at a function-local variable.
func LocalVar(name string) Path {
	return Path{root: Root{Kind: Local, Name: name, Index: -1}}
}

// Parameter returns a path rooted at the i-th formal parameter.
func Parameter(i int, name string) Path {
	return Path{root: Root{Kind: Param, Name: name, Index: i}}
}

// GlobalVar returns a path rooted at a package-level variable. The name
// should be package-qualified so globals from different packages stay
// distinct.
func GlobalVar(name string) Path {
	return Path{root: Root{Kind: Global, Name: name, Index: -1}}
}

// FromRoot returns the projection-free path for r.
func FromRoot(r Root) Path {
	return Path{root: r}
}

// Field extends p with a field projection.
func (p Path) Field(name string) Path {
	return Path{root: p.root, projs: p.projs + "." + name}
}

// Index extends p with an array/slice/map element projection. Element
// positions are collapsed into a single [*] projection.
func (p Path) Index() Path {
	return Path{root: p.root, projs: p.projs + "[*]"}
}

// Root returns the base variable of p.
func (p Path) Root() Root {
	return p.root
}

// Valid reports whether p denotes an actual location. The zero Path is the
// only invalid value.
func (p Path) Valid() bool {
	return p.root.Name != ""
}

// Rebase replaces the root of p with the path onto, keeping p's projections.
// It reports false when p is not rooted at root.
func (p Path) Rebase(root Root, onto Path) (Path, bool) {
	if p.root != root {
		return Path{}, false
	}
	return Path{root: onto.root, projs: onto.projs + p.projs}, true
}

// Compare orders paths structurally: first by root, then by projections.
func (p Path) Compare(q Path) int {
	if c := compareRoot(p.root, q.root); c != 0 {
		return c
	}
	return strings.Compare(p.projs, q.projs)
}

func compareRoot(a, b Root) int {
	if a.Kind != b.Kind {
		if a.Kind < b.Kind {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	switch {
	case a.Index < b.Index:
		return -1
	case a.Index > b.Index:
		return 1
	}
	return 0
}

func (p Path) String() string {
	return p.root.String() + p.projs
}
