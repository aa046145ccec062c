package domain

import (
	"fmt"
	"go/token"
	"strings"

	"github.com/o2lab/racer/accesspath"
)

// AccessKind distinguishes reads from writes.
type AccessKind int

const (
	Read AccessKind = iota
	Write
)

func (k AccessKind) String() string {
	if k == Write {
		return "Write"
	}
	return "Read"
}

// Access is a read or write of a structural location. Accesses are immutable
// values compared structurally.
type Access struct {
	Path accesspath.Path
	Kind AccessKind
}

func (a Access) Compare(b Access) int {
	if c := a.Path.Compare(b.Path); c != 0 {
		return c
	}
	switch {
	case a.Kind < b.Kind:
		return -1
	case a.Kind > b.Kind:
		return 1
	}
	return 0
}

func (a Access) String() string {
	return fmt.Sprintf("%s of %s", a.Kind, a.Path)
}

// TraceElem wraps an Access with its source position and the call chain that
// produced it, so a reported race can show the path from the analyzed
// function down to the access. TraceElem values are comparable and ordered.
type TraceElem struct {
	Access Access
	Pos    token.Position
	// Trace is the provenance of the access: the call sites crossed between
	// the current frame and the frame that performed the access, outermost
	// first. Empty for accesses made directly by the current function.
	Trace string
	// Depth is the number of call sites in Trace.
	Depth int
}

// MakeAccess constructs the trace element for a direct access.
func MakeAccess(path accesspath.Path, kind AccessKind, pos token.Position) TraceElem {
	return TraceElem{
		Access: Access{Path: path, Kind: kind},
		Pos:    pos,
	}
}

func (e TraceElem) IsRead() bool {
	return e.Access.Kind == Read
}

func (e TraceElem) IsWrite() bool {
	return e.Access.Kind == Write
}

// InCallee chains e across a call site: the result records that the access
// was reached through a call to callee at site.
func (e TraceElem) InCallee(callee string, site token.Position) TraceElem {
	hop := fmt.Sprintf("%s@%s:%d", callee, site.Filename, site.Line)
	if e.Trace == "" {
		e.Trace = hop
	} else {
		e.Trace = hop + " -> " + e.Trace
	}
	e.Depth++
	return e
}

func (e TraceElem) Compare(o TraceElem) int {
	if c := e.Access.Compare(o.Access); c != 0 {
		return c
	}
	if c := strings.Compare(e.Pos.Filename, o.Pos.Filename); c != 0 {
		return c
	}
	switch {
	case e.Pos.Line != o.Pos.Line:
		if e.Pos.Line < o.Pos.Line {
			return -1
		}
		return 1
	case e.Pos.Column != o.Pos.Column:
		if e.Pos.Column < o.Pos.Column {
			return -1
		}
		return 1
	case e.Depth != o.Depth:
		if e.Depth < o.Depth {
			return -1
		}
		return 1
	}
	return strings.Compare(e.Trace, o.Trace)
}

func (e TraceElem) String() string {
	if e.Trace == "" {
		return fmt.Sprintf("%s at %s:%d", e.Access, e.Pos.Filename, e.Pos.Line)
	}
	return fmt.Sprintf("%s at %s:%d via %s", e.Access, e.Pos.Filename, e.Pos.Line, e.Trace)
}

// PathSet is a may-set of trace elements: a trace ending in one of these
// accesses may occur along some execution. Join is union; the empty set is
// bottom.
type PathSet = MaySet[TraceElem]
