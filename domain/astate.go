package domain

import (
	"fmt"
	"sort"
	"strings"

	"github.com/o2lab/racer/accesspath"
)

// State is the abstract state at one program point of one function. It is
// created as Bottom at function entry, mutated by the transfer functions one
// statement at a time, and joined at control-flow merges.
//
// States from different frames must never be joined directly: callee facts
// are first translated into the caller's frame by the call-site translation
// and only then merged in.
type State struct {
	Threads    ThreadsDomain
	Locks      LocksDomain
	Accesses   AccessDomain
	Attributes AttributeMap
}

// Bottom returns the unreachable state, the identity for Join.
func Bottom() State {
	return State{
		Threads: ThreadsBottom,
		Locks:   LocksBottom,
	}
}

func (s State) Join(other State) State {
	return State{
		Threads:    s.Threads.Join(other.Threads),
		Locks:      s.Locks.Join(other.Locks),
		Accesses:   s.Accesses.Join(other.Accesses),
		Attributes: s.Attributes.Join(other.Attributes),
	}
}

func (s State) Leq(other State) bool {
	return s.Threads.Leq(other.Threads) &&
		s.Locks.Leq(other.Locks) &&
		s.Accesses.Leq(other.Accesses) &&
		s.Attributes.Leq(other.Attributes)
}

// AddAccess records an access under pre.
func (s State) AddAccess(pre AccessPrecondition, elem TraceElem) State {
	s.Accesses = s.Accesses.AddAccess(pre, elem)
	return s
}

// AddAttribute asserts attr on path.
func (s State) AddAttribute(path accesspath.Path, attr Attribute) State {
	s.Attributes = s.Attributes.AddAttribute(path, attr)
	return s
}

func (s State) String() string {
	return fmt.Sprintf("{threads=%t locks=%t accesses=%s attributes=%d paths}",
		bool(s.Threads), bool(s.Locks), formatAccesses(s.Accesses), len(s.Attributes))
}

// Summary is the reduced, immutable result of analyzing one function. It
// mirrors the converged state except that per-path attributes are collapsed
// to the attributes of the function's return value; local attribute facts do
// not outlive the function, while callers need the return attributes to
// resolve ownership of call results.
type Summary struct {
	Threads          ThreadsDomain
	Locks            LocksDomain
	Accesses         AccessDomain
	ReturnAttributes AttributeSet
}

// MakeSummary reduces a converged state to a summary. ret is the path of the
// function's return value; an invalid path means the function returns
// nothing trackable, in which case no return attributes are claimed.
func MakeSummary(state State, ret accesspath.Path) Summary {
	var attrs AttributeSet
	if ret.Valid() {
		attrs = state.Attributes[ret]
	}
	return Summary{
		Threads:          state.Threads,
		Locks:            state.Locks,
		Accesses:         state.Accesses,
		ReturnAttributes: attrs,
	}
}

// String renders the summary for diagnostics, deterministically.
func (s Summary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "threads=%t locks=%t\n", bool(s.Threads), bool(s.Locks))
	fmt.Fprintf(&b, "accesses: %s\n", formatAccesses(s.Accesses))
	attrs := make([]string, 0, s.ReturnAttributes.Len())
	for a := range s.ReturnAttributes {
		attrs = append(attrs, a.String())
	}
	sort.Strings(attrs)
	fmt.Fprintf(&b, "return: {%s}", strings.Join(attrs, ", "))
	return b.String()
}

func formatAccesses(d AccessDomain) string {
	pres := make([]AccessPrecondition, 0, len(d))
	for pre := range d {
		pres = append(pres, pre)
	}
	sort.Slice(pres, func(i, j int) bool { return pres[i].Compare(pres[j]) < 0 })
	var b strings.Builder
	b.WriteString("{")
	for i, pre := range pres {
		if i > 0 {
			b.WriteString("; ")
		}
		elems := make([]TraceElem, 0, d[pre].Len())
		for e := range d[pre] {
			elems = append(elems, e)
		}
		sort.Slice(elems, func(i, j int) bool { return elems[i].Compare(elems[j]) < 0 })
		parts := make([]string, len(elems))
		for j, e := range elems {
			parts[j] = e.String()
		}
		fmt.Fprintf(&b, "%s: [%s]", pre, strings.Join(parts, ", "))
	}
	b.WriteString("}")
	return b.String()
}
