package domain

import "fmt"

// Excluder names what guarantees exclusivity for a protected access.
type Excluder int

const (
	// ByThread: the access can only happen on the main thread.
	ByThread Excluder = iota
	// ByLock: the access can only happen with a lock held.
	ByLock
	// ByBoth: both the main thread and a lock protect the access.
	ByBoth
)

func (e Excluder) String() string {
	switch e {
	case ByThread:
		return "Thread"
	case ByLock:
		return "Lock"
	case ByBoth:
		return "Both"
	}
	return "Unknown"
}

// PreconditionKind enumerates the closed set of precondition variants.
type PreconditionKind int

const (
	// Protected: the access occurred while an excluder held.
	Protected PreconditionKind = iota
	// Unprotected: the access is unsafe unless the caller holds a lock at
	// the call site, or (when conditional) the bound actual is owned.
	Unprotected
)

// AccessPrecondition classifies why a recorded access is or is not safe.
// Values are comparable and constructed only through ProtectedBy,
// UnprotectedUnknown and UnprotectedIf.
type AccessPrecondition struct {
	Kind     PreconditionKind
	Excluder Excluder // valid when Kind is Protected
	// Param is the formal parameter index the access's safety is conditional
	// on, or -1. Valid when Kind is Unprotected.
	Param int
}

// ProtectedBy returns the precondition for an access made under e.
func ProtectedBy(e Excluder) AccessPrecondition {
	return AccessPrecondition{Kind: Protected, Excluder: e, Param: -1}
}

// UnprotectedUnknown returns the precondition for an access that is unsafe
// unless the caller holds a lock.
func UnprotectedUnknown() AccessPrecondition {
	return AccessPrecondition{Kind: Unprotected, Param: -1}
}

// UnprotectedIf returns the precondition for an access that is safe exactly
// when the actual bound to formal i is owned by the caller.
func UnprotectedIf(i int) AccessPrecondition {
	if i < 0 {
		panic("domain: UnprotectedIf requires a formal parameter index")
	}
	return AccessPrecondition{Kind: Unprotected, Param: i}
}

func (p AccessPrecondition) Compare(q AccessPrecondition) int {
	switch {
	case p.Kind != q.Kind:
		if p.Kind < q.Kind {
			return -1
		}
		return 1
	case p.Excluder != q.Excluder:
		if p.Excluder < q.Excluder {
			return -1
		}
		return 1
	case p.Param != q.Param:
		if p.Param < q.Param {
			return -1
		}
		return 1
	}
	return 0
}

func (p AccessPrecondition) String() string {
	switch p.Kind {
	case Protected:
		return fmt.Sprintf("Protected(%s)", p.Excluder)
	case Unprotected:
		if p.Param < 0 {
			return "Unprotected"
		}
		return fmt.Sprintf("UnprotectedIf(%d)", p.Param)
	}
	return "Unknown"
}
