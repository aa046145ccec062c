package pass

import "golang.org/x/tools/go/ssa"

// Models configures functions with special semantics that the transfer
// functions cannot derive from code. Keys are full function strings as
// printed by ssa.Function.String, e.g. "(*app.Registry).IsMainThread".
type Models struct {
	// Functional functions are side-effect-free: their results carry the
	// Functional attribute and locations holding them never race.
	Functional map[string]bool
	// MainThread functions return a boolean that is true only on the main
	// thread, e.g. bindings to a UI toolkit's thread check.
	MainThread map[string]bool
	// LockHeld functions return a boolean that is true only while a lock is
	// held, e.g. TryLock-style checks.
	LockHeld map[string]bool
}

func (m Models) isFunctional(fn *ssa.Function) bool {
	return m.Functional[fn.String()]
}

func (m Models) isMainThreadCheck(fn *ssa.Function) bool {
	return m.MainThread[fn.String()]
}

func (m Models) isLockHeldCheck(fn *ssa.Function) bool {
	return m.LockHeld[fn.String()]
}

func isSyncFunc(fn *ssa.Function, names ...string) bool {
	if fn.Pkg == nil || fn.Pkg.Pkg.Path() != "sync" {
		return false
	}
	for _, name := range names {
		if fn.Name() == name {
			return true
		}
	}
	return false
}

// isLockAcquire reports whether call acquires a sync lock. All lock
// identities are collapsed into the single locks boolean, so the receiver is
// irrelevant.
func isLockAcquire(call *ssa.CallCommon) bool {
	callee := call.StaticCallee()
	return callee != nil && isSyncFunc(callee, "Lock", "RLock")
}

func isLockRelease(call *ssa.CallCommon) bool {
	callee := call.StaticCallee()
	return callee != nil && isSyncFunc(callee, "Unlock", "RUnlock")
}
