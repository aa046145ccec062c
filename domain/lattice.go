// Package domain implements the abstract state of the race analysis: the
// lattice of per-program-point facts (thread, lock, accesses, ownership
// attributes) and its reduction to per-function summaries.
//
// Every type here is a pure value. Operations return new states and never
// mutate their receivers, so converged states and summaries can be shared
// freely by the fixpoint driver.
package domain

// Element is the lattice interface shared by every domain in this package.
// Join must be commutative, associative and idempotent, and Leq must be the
// partial order induced by Join; the worklist driver relies on both for
// convergence.
type Element[T any] interface {
	Join(other T) T
	Leq(other T) bool
}

// MaySet records facts that hold on at least one execution path. Join is set
// union and the empty (or nil) set is bottom.
type MaySet[T comparable] map[T]struct{}

// Add returns a copy of s extended with x.
func (s MaySet[T]) Add(x T) MaySet[T] {
	out := make(MaySet[T], len(s)+1)
	for e := range s {
		out[e] = struct{}{}
	}
	out[x] = struct{}{}
	return out
}

func (s MaySet[T]) Contains(x T) bool {
	_, ok := s[x]
	return ok
}

func (s MaySet[T]) Len() int {
	return len(s)
}

func (s MaySet[T]) Join(other MaySet[T]) MaySet[T] {
	if len(s) == 0 {
		return other
	}
	if len(other) == 0 {
		return s
	}
	out := make(MaySet[T], len(s)+len(other))
	for e := range s {
		out[e] = struct{}{}
	}
	for e := range other {
		out[e] = struct{}{}
	}
	return out
}

// Leq reports whether s is a subset of other.
func (s MaySet[T]) Leq(other MaySet[T]) bool {
	for e := range s {
		if _, ok := other[e]; !ok {
			return false
		}
	}
	return true
}

// MustSet records facts that hold on every execution path. Join is set
// intersection: a fact survives a merge only if both branches proved it.
// Conceptually bottom is the universal set; only finite sets are
// representable, so bottom is realized by the enclosing map (see
// AttributeMap) rather than by a MustSet value.
type MustSet[T comparable] map[T]struct{}

// Add returns a copy of s extended with x. Local assertions union into the
// set; intersection happens only at control-flow merges.
func (s MustSet[T]) Add(x T) MustSet[T] {
	out := make(MustSet[T], len(s)+1)
	for e := range s {
		out[e] = struct{}{}
	}
	out[x] = struct{}{}
	return out
}

func (s MustSet[T]) Contains(x T) bool {
	_, ok := s[x]
	return ok
}

func (s MustSet[T]) Len() int {
	return len(s)
}

func (s MustSet[T]) Join(other MustSet[T]) MustSet[T] {
	out := make(MustSet[T])
	for e := range s {
		if _, ok := other[e]; ok {
			out[e] = struct{}{}
		}
	}
	return out
}

// Leq reports whether s is at least as informative as other, i.e. other is a
// subset of s.
func (s MustSet[T]) Leq(other MustSet[T]) bool {
	for e := range other {
		if _, ok := s[e]; !ok {
			return false
		}
	}
	return true
}

// joinMayMap joins two union-style maps pointwise. A key missing from one
// side is treated as the value's bottom (its zero value).
func joinMayMap[K comparable, V Element[V]](a, b map[K]V) map[K]V {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	out := make(map[K]V, len(a)+len(b))
	for k, v := range a {
		out[k] = v
	}
	for k, v := range b {
		if cur, ok := out[k]; ok {
			out[k] = cur.Join(v)
		} else {
			out[k] = v
		}
	}
	return out
}

func leqMayMap[K comparable, V Element[V]](a, b map[K]V) bool {
	for k, v := range a {
		if !v.Leq(b[k]) {
			return false
		}
	}
	return true
}

// joinMustMap joins two intersection-style maps. The nil map is bottom (the
// unreachable state, where every key conceptually has the universal value)
// and acts as the join identity. For two non-nil maps only keys present in
// both survive, with their values joined: a fact not proven on both branches
// is dropped.
func joinMustMap[K comparable, V Element[V]](a, b map[K]V) map[K]V {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	out := make(map[K]V)
	for k, va := range a {
		if vb, ok := b[k]; ok {
			out[k] = va.Join(vb)
		}
	}
	return out
}

func leqMustMap[K comparable, V Element[V]](a, b map[K]V) bool {
	if a == nil {
		return true
	}
	if b == nil {
		return false
	}
	for k, vb := range b {
		va, ok := a[k]
		if !ok || !va.Leq(vb) {
			return false
		}
	}
	return true
}
