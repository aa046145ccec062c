package domain

import (
	"fmt"
	"sort"

	"github.com/o2lab/racer/accesspath"
)

// AttributeKind enumerates the closed set of attribute variants. Every
// consumer must dispatch exhaustively over these; soundness depends on no
// case being silently ignored.
type AttributeKind int

const (
	// AttrOwned marks a path as owned: unconditionally when Param < 0
	// (freshly allocated and not escaped), otherwise exactly when the actual
	// bound to formal Param is owned by the caller.
	AttrOwned AttributeKind = iota
	// AttrFunctional marks a path holding a value returned from a function
	// modeled as side-effect-free.
	AttrFunctional
	// AttrChoice marks a path holding a boolean whose truth implies a thread
	// or lock fact, used to special-case idioms like
	// "if onMainThread() { ... }".
	AttrChoice
)

// Choice is the fact implied by a true AttrChoice value.
type Choice int

const (
	OnMainThread Choice = iota
	LockHeld
)

func (c Choice) String() string {
	if c == LockHeld {
		return "LockHeld"
	}
	return "OnMainThread"
}

// Attribute is a tag attached to an access path. Attributes are constructed
// only through Owned, OwnedIf, Functional and ChoiceOf so that equal
// attributes are equal values.
type Attribute struct {
	Kind   AttributeKind
	Param  int // formal index for conditional ownership, -1 otherwise
	Choice Choice
}

// Owned returns the unconditional ownership attribute.
func Owned() Attribute {
	return Attribute{Kind: AttrOwned, Param: -1}
}

// OwnedIf returns ownership conditional on formal parameter i being owned by
// the caller. i must be non-negative.
func OwnedIf(i int) Attribute {
	if i < 0 {
		panic("domain: OwnedIf requires a formal parameter index")
	}
	return Attribute{Kind: AttrOwned, Param: i}
}

// Functional returns the attribute for values produced by side-effect-free
// functions.
func Functional() Attribute {
	return Attribute{Kind: AttrFunctional, Param: -1}
}

// ChoiceOf returns the attribute for a boolean implying c.
func ChoiceOf(c Choice) Attribute {
	return Attribute{Kind: AttrChoice, Param: -1, Choice: c}
}

func (a Attribute) String() string {
	switch a.Kind {
	case AttrOwned:
		if a.Param < 0 {
			return "Owned"
		}
		return fmt.Sprintf("OwnedIf(%d)", a.Param)
	case AttrFunctional:
		return "Functional"
	case AttrChoice:
		return fmt.Sprintf("Choice(%s)", a.Choice)
	}
	return "Unknown"
}

// AttributeSet is the must-set of attributes proven for one access path.
type AttributeSet = MustSet[Attribute]

// AttributeMap maps access paths to their proven attributes. It is a must
// map: the nil map is bottom (the unreachable state, where every path
// conceptually carries the universal set) and is the join identity, while an
// absent key in a non-nil map carries no attributes. Joining two non-nil
// maps intersects attribute sets key by key and drops keys not proven on
// both sides.
type AttributeMap map[accesspath.Path]AttributeSet

func (m AttributeMap) Join(other AttributeMap) AttributeMap {
	return joinMustMap(m, other)
}

func (m AttributeMap) Leq(other AttributeMap) bool {
	return leqMustMap(m, other)
}

// AddAttribute returns m extended with attr on path. New local assertions
// union into the existing set and never remove previously asserted facts;
// asserting conditional ownership on a path already known unconditionally
// owned is a no-op, since the stronger fact subsumes it.
func (m AttributeMap) AddAttribute(path accesspath.Path, attr Attribute) AttributeMap {
	if !path.Valid() {
		panic("domain: AddAttribute on invalid path")
	}
	cur := m[path]
	if attr.Kind == AttrOwned && attr.Param >= 0 && cur.Contains(Owned()) {
		return m
	}
	out := make(AttributeMap, len(m)+1)
	for p, s := range m {
		out[p] = s
	}
	out[path] = cur.Add(attr)
	return out
}

// HasAttribute reports whether attr has been proven for path on every
// incoming execution.
func (m AttributeMap) HasAttribute(path accesspath.Path, attr Attribute) bool {
	return m[path].Contains(attr)
}

// IsOwned reports whether path is unconditionally owned.
func (m AttributeMap) IsOwned(path accesspath.Path) bool {
	return m.HasAttribute(path, Owned())
}

// ConditionalOwnershipIndex returns the formal parameter index i such that
// path carries OwnedIf(i), if any.
func (m AttributeMap) ConditionalOwnershipIndex(path accesspath.Path) (int, bool) {
	for attr := range m[path] {
		if attr.Kind == AttrOwned && attr.Param >= 0 {
			return attr.Param, true
		}
	}
	return -1, false
}

// Choices returns the choice facts carried by path, in deterministic order.
func (m AttributeMap) Choices(path accesspath.Path) []Choice {
	var choices []Choice
	for attr := range m[path] {
		if attr.Kind == AttrChoice {
			choices = append(choices, attr.Choice)
		}
	}
	sort.Slice(choices, func(i, j int) bool { return choices[i] < choices[j] })
	return choices
}
