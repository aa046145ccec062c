package pass

import (
	"github.com/o2lab/racer/accesspath"
	"github.com/o2lab/racer/domain"
)

// Frame translation: callee facts are expressed over the callee's formals
// and globals. Before they are merged into a caller state they are renamed
// into the caller's frame and their conditional preconditions are resolved
// against what the caller knows at the call site. The domain itself never
// sees untranslated values.

// TranslatePath rebases a callee path into the caller frame. Paths rooted at
// formal i are rebased onto actuals[i]; globals pass through unchanged;
// callee-local paths have no caller meaning and report false. An invalid
// actual (the callee was passed something the caller cannot name) also
// reports false.
func TranslatePath(p accesspath.Path, actuals []accesspath.Path) (accesspath.Path, bool) {
	root := p.Root()
	switch root.Kind {
	case accesspath.Global:
		return p, true
	case accesspath.Param:
		if root.Index >= len(actuals) || !actuals[root.Index].Valid() {
			return accesspath.Path{}, false
		}
		return p.Rebase(root, actuals[root.Index])
	}
	return accesspath.Path{}, false
}

// ResolveAttribute resolves a conditional ownership attribute against the
// ownership of the caller's actuals. OwnedIf(i) becomes Owned when the
// caller owns actual i unconditionally, OwnedIf(j) when the caller's
// ownership of actual i is itself conditional on the caller's formal j, and
// is dropped (reported false) when the caller cannot prove anything about
// actual i. Other attributes pass through unchanged.
func ResolveAttribute(a domain.Attribute, ownerOf func(int) (domain.Attribute, bool)) (domain.Attribute, bool) {
	if a.Kind != domain.AttrOwned || a.Param < 0 {
		return a, true
	}
	owner, ok := ownerOf(a.Param)
	if !ok || owner.Kind != domain.AttrOwned {
		return domain.Attribute{}, false
	}
	return owner, true
}

// ResolveAttributeSet resolves every attribute in a callee's return set.
func ResolveAttributeSet(s domain.AttributeSet, ownerOf func(int) (domain.Attribute, bool)) domain.AttributeSet {
	var out domain.AttributeSet
	for a := range s {
		if resolved, ok := ResolveAttribute(a, ownerOf); ok {
			out = out.Add(resolved)
		}
	}
	return out
}

// TranslatePrecondition rewrites a callee access precondition for the caller
// frame. It reports false when the access is proven safe at this call site
// and need not be recorded at all.
//
// Protected accesses stay protected: the callee excluded racers on its own.
// Unprotected accesses conditional on formal i resolve against the caller's
// ownership of actual i: unconditional ownership discharges the access,
// conditional ownership rebinds the condition to the caller's formal.
// Whatever remains unprotected is escalated by the caller's own context: a
// lock or main-thread fact at the call site protects everything the callee
// did under it.
func TranslatePrecondition(pre domain.AccessPrecondition, locks domain.LocksDomain, threads domain.ThreadsDomain,
	ownerOf func(int) (domain.Attribute, bool)) (domain.AccessPrecondition, bool) {
	switch pre.Kind {
	case domain.Protected:
		return pre, true
	case domain.Unprotected:
		if pre.Param >= 0 && ownerOf != nil {
			if owner, ok := ownerOf(pre.Param); ok && owner.Kind == domain.AttrOwned {
				if owner.Param < 0 {
					return domain.AccessPrecondition{}, false
				}
				return domain.UnprotectedIf(owner.Param), true
			}
		}
		switch {
		case bool(locks) && bool(threads):
			return domain.ProtectedBy(domain.ByBoth), true
		case bool(locks):
			return domain.ProtectedBy(domain.ByLock), true
		case bool(threads):
			return domain.ProtectedBy(domain.ByThread), true
		}
		return domain.UnprotectedUnknown(), true
	}
	panic("pass: unknown precondition kind")
}
