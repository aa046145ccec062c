// Package pass implements the per-function analysis: transfer functions over
// SSA instructions and a forward worklist fixpoint that drives the abstract
// domain, producing a caller-facing summary per function.
package pass

import (
	"go/token"

	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"

	"github.com/o2lab/racer/accesspath"
	"github.com/o2lab/racer/domain"
)

// SummaryLookup resolves a callee to its cached summary. It reports false
// when no summary is available, e.g. for functions on a call cycle still
// being analyzed.
type SummaryLookup func(*ssa.Function) (domain.Summary, bool)

// retPath is the synthetic path collecting return-value attributes across
// all return sites. The "$" prefix keeps it disjoint from SSA register
// names.
var retPath = accesspath.LocalVar("$ret")

type FnPass struct {
	fn        *ssa.Function
	fset      *token.FileSet
	models    Models
	summaries SummaryLookup
	// onMainThread is true only for the distinguished entry function;
	// everything else starts with the uninformative default.
	onMainThread bool
	// deferredLock/deferredUnlock record that some deferred call acquires
	// or releases a lock, to be applied at RunDefers. Coarse: not tracked
	// per path.
	deferredLock   bool
	deferredUnlock bool
	// captureCells are the allocs this function binds into closures; cells
	// holds the path each one was last observed to store. Accesses through
	// a cell are named by its contents, so the closure and the enclosing
	// function agree on one path for the captured variable.
	captureCells map[*ssa.Alloc]bool
	cells        map[*ssa.Alloc]accesspath.Path

	outs []domain.State
	done []bool
}

func NewFnPass(fn *ssa.Function, models Models, summaries SummaryLookup, onMainThread bool) *FnPass {
	pass := &FnPass{
		fn:           fn,
		fset:         fn.Prog.Fset,
		models:       models,
		summaries:    summaries,
		onMainThread: onMainThread,
		captureCells: make(map[*ssa.Alloc]bool),
		cells:        make(map[*ssa.Alloc]accesspath.Path),
	}
	for _, block := range fn.Blocks {
		for _, instr := range block.Instrs {
			if mc, ok := instr.(*ssa.MakeClosure); ok {
				for _, binding := range mc.Bindings {
					if alloc, ok := binding.(*ssa.Alloc); ok {
						pass.captureCells[alloc] = true
					}
				}
			}
		}
	}
	return pass
}

// Run analyzes the function to a fixpoint and returns the converged exit
// state together with the caller-facing summary. The summary keeps only
// accesses on paths a caller can name (formal- and global-rooted);
// function-private local paths stay in the state.
func (pass *FnPass) Run() (domain.State, domain.Summary) {
	fn := pass.fn
	if len(fn.Blocks) == 0 {
		// External or unbuilt function: no known effects.
		state := domain.Bottom()
		state.Threads = false
		state.Locks = false
		state.Attributes = domain.AttributeMap{}
		return state, domain.MakeSummary(state, accesspath.Path{})
	}

	size := len(fn.Blocks)
	pass.outs = make([]domain.State, size)
	pass.done = make([]bool, size)
	worklist := make([]int, size)
	for i := range worklist {
		worklist[i] = i
	}

	for len(worklist) > 0 {
		idx := worklist[0]
		worklist = worklist[1:]
		block := fn.Blocks[idx]
		log.Debugf("Block %d: %s", block.Index, block.Comment)

		in := domain.Bottom()
		if idx == 0 {
			in = pass.entryState()
		}
		for _, pred := range block.Preds {
			if pass.done[pred.Index] {
				in = in.Join(pass.refineBranch(pass.outs[pred.Index], pred, block))
			}
		}

		out := pass.transferBlock(block, in)
		if pass.done[idx] && stateEqual(out, pass.outs[idx]) {
			continue
		}
		pass.outs[idx] = out
		pass.done[idx] = true
		for _, succ := range block.Succs {
			worklist = appendIfNotPresent(worklist, succ.Index)
		}
	}

	exit := domain.Bottom()
	reached := false
	for i, block := range fn.Blocks {
		if pass.done[i] && len(block.Succs) == 0 {
			exit = exit.Join(pass.outs[i])
			reached = true
		}
	}
	if !reached {
		// No exit block (e.g. an infinite loop): fall back to every state.
		for i := range fn.Blocks {
			if pass.done[i] {
				exit = exit.Join(pass.outs[i])
			}
		}
	}
	return exit, pass.summarize(exit)
}

func (pass *FnPass) summarize(exit domain.State) domain.Summary {
	var shared domain.AccessDomain
	for pre, elems := range exit.Accesses {
		for elem := range elems {
			if elem.Access.Path.Root().Kind != accesspath.Local {
				shared = shared.AddAccess(pre, elem)
			}
		}
	}
	sumState := exit
	sumState.Accesses = shared
	return domain.MakeSummary(sumState, retPath)
}

// entryState gives each formal and free variable ownership conditional on
// its own position, so that accesses through them surface as conditionally
// unprotected and get resolved by callers. The attribute map starts as the
// empty map, never nil: nil is the unreachable bottom and joins as identity,
// which would let one-sided branch facts survive a reachable merge.
func (pass *FnPass) entryState() domain.State {
	s := domain.Bottom()
	s.Locks = false
	s.Threads = domain.ThreadsDomain(pass.onMainThread)
	s.Attributes = domain.AttributeMap{}
	for i, p := range pass.fn.Params {
		s = s.AddAttribute(accesspath.Parameter(i, p.Name()), domain.OwnedIf(i))
	}
	base := len(pass.fn.Params)
	for i, fv := range pass.fn.FreeVars {
		s = s.AddAttribute(accesspath.Parameter(base+i, fv.Name()), domain.OwnedIf(base+i))
	}
	return s
}

// refineBranch strengthens the state flowing along the true edge of a
// conditional whose condition carries choice facts, handling idioms like
// "if onMainThread() { ... }".
func (pass *FnPass) refineBranch(out domain.State, pred, succ *ssa.BasicBlock) domain.State {
	if len(pred.Instrs) == 0 {
		return out
	}
	iff, ok := pred.Instrs[len(pred.Instrs)-1].(*ssa.If)
	if !ok || len(pred.Succs) < 2 || pred.Succs[0] != succ || pred.Succs[1] == succ {
		return out
	}
	condPath, ok := pass.valuePath(iff.Cond)
	if !ok {
		return out
	}
	for _, c := range out.Attributes.Choices(condPath) {
		switch c {
		case domain.OnMainThread:
			out.Threads = true
		case domain.LockHeld:
			out.Locks = true
		}
	}
	return out
}

func (pass *FnPass) transferBlock(block *ssa.BasicBlock, s domain.State) domain.State {
	for _, instr := range block.Instrs {
		log.Debugf("  %s", instr)
		s = pass.transferInstr(s, instr)
	}
	return s
}

func (pass *FnPass) transferInstr(s domain.State, instruction ssa.Instruction) domain.State {
	switch instr := instruction.(type) {
	case *ssa.Call:
		return pass.transferCall(s, instr, instr.Common())
	case *ssa.Defer:
		common := instr.Common()
		// Deferred lock operations take effect at RunDefers, not here.
		if isLockRelease(common) {
			pass.deferredUnlock = true
			return s
		}
		if isLockAcquire(common) {
			pass.deferredLock = true
			return s
		}
		return pass.transferCall(s, instr, common)
	case *ssa.RunDefers:
		if pass.deferredUnlock {
			s.Locks = false
		}
		if pass.deferredLock {
			s.Locks = true
		}
		return s
	case *ssa.Go:
		return pass.transferSpawn(s, instr)
	case *ssa.Alloc:
		// The alloc's own identity, not the forwarded cell contents: a
		// capture cell revisited in a loop must not claim what it stores.
		if instr.Heap {
			if p, ok := pathOf(instr); ok {
				s = s.AddAttribute(p, domain.Owned())
			}
		}
		return s
	case *ssa.Store:
		return pass.transferStore(s, instr)
	case *ssa.UnOp:
		if instr.Op == token.MUL {
			return pass.recordAccess(s, instr.X, domain.Read, instr.Pos())
		}
		return s
	case *ssa.MapUpdate:
		return pass.recordAccess(s, instr.Map, domain.Write, instr.Pos())
	case *ssa.Lookup:
		return pass.recordAccess(s, instr.X, domain.Read, instr.Pos())
	case *ssa.Return:
		return pass.transferReturn(s, instr)
	}
	return s
}

func (pass *FnPass) transferCall(s domain.State, instr ssa.CallInstruction, common *ssa.CallCommon) domain.State {
	if isLockAcquire(common) {
		log.Debugf("Lock at %s", pass.fset.Position(common.Pos()))
		s.Locks = true
		return s
	}
	if isLockRelease(common) {
		log.Debugf("Unlock at %s", pass.fset.Position(common.Pos()))
		s.Locks = false
		return s
	}
	callee := common.StaticCallee()
	if callee == nil {
		// Dynamic dispatch: no callee knowledge, no effect recorded.
		return s
	}
	if pass.models.isFunctional(callee) {
		return pass.attachResult(s, instr, domain.Functional())
	}
	if pass.models.isMainThreadCheck(callee) {
		return pass.attachResult(s, instr, domain.ChoiceOf(domain.OnMainThread))
	}
	if pass.models.isLockHeldCheck(callee) {
		return pass.attachResult(s, instr, domain.ChoiceOf(domain.LockHeld))
	}
	if pass.summaries == nil {
		return s
	}
	sum, ok := pass.summaries(callee)
	if !ok {
		return s
	}
	return pass.applySummary(s, instr, common, callee, sum)
}

func (pass *FnPass) attachResult(s domain.State, instr ssa.CallInstruction, attr domain.Attribute) domain.State {
	if call, ok := instr.(*ssa.Call); ok {
		if p, ok := pass.valuePath(call); ok {
			return s.AddAttribute(p, attr)
		}
	}
	return s
}

// applySummary merges a callee's summary into the caller state at a call
// site: paths are renamed into the caller frame, conditional preconditions
// are resolved against the ownership of the actuals, and whatever stays
// unprotected is escalated by the caller's lock and thread context.
func (pass *FnPass) applySummary(s domain.State, instr ssa.CallInstruction, common *ssa.CallCommon,
	callee *ssa.Function, sum domain.Summary) domain.State {
	actuals := pass.actualPaths(callActuals(common))
	ownerOf := pass.ownerFunc(s, actuals)
	site := pass.fset.Position(common.Pos())

	for pre, elems := range sum.Accesses {
		for elem := range elems {
			newPath, ok := TranslatePath(elem.Access.Path, actuals)
			if !ok {
				continue
			}
			newPre, keep := TranslatePrecondition(pre, s.Locks, s.Threads, ownerOf)
			if !keep {
				continue
			}
			elem.Access.Path = newPath
			s = s.AddAccess(newPre, elem.InCallee(callee.Name(), site))
		}
	}

	// A lock the callee still holds at return is now held by the caller.
	if bool(sum.Locks) {
		s.Locks = true
	}

	if call, ok := instr.(*ssa.Call); ok {
		if resPath, ok := pass.valuePath(call); ok {
			for attr := range ResolveAttributeSet(sum.ReturnAttributes, ownerOf) {
				s = s.AddAttribute(resPath, attr)
			}
		}
	}
	return s
}

// transferSpawn merges the summary of a spawned function into the caller
// frame. The goroutine runs outside the caller's lock and thread context,
// and everything handed to it stops being owned by this thread.
func (pass *FnPass) transferSpawn(s domain.State, instr *ssa.Go) domain.State {
	common := instr.Common()
	callee := common.StaticCallee()
	if callee == nil {
		return s
	}

	actuals := pass.actualPaths(callActuals(common))
	for _, p := range actuals {
		if p.Valid() {
			s = clearOwnership(s, p)
		}
	}

	if pass.summaries == nil {
		return s
	}
	sum, ok := pass.summaries(callee)
	if !ok {
		return s
	}
	site := pass.fset.Position(common.Pos())
	for pre, elems := range sum.Accesses {
		for elem := range elems {
			newPath, ok := TranslatePath(elem.Access.Path, actuals)
			if !ok {
				continue
			}
			newPre, keep := TranslatePrecondition(pre, false, false, nil)
			if !keep {
				continue
			}
			elem.Access.Path = newPath
			s = s.AddAccess(newPre, elem.InCallee(callee.Name(), site))
		}
	}
	return s
}

func (pass *FnPass) transferStore(s domain.State, instr *ssa.Store) domain.State {
	// Name the target before updating any cell forwarding: the store writes
	// the location the cell denoted up to this point.
	addrPath, addrOK := pass.valuePath(instr.Addr)
	valPath, valOK := pass.valuePath(instr.Val)
	if alloc, ok := instr.Addr.(*ssa.Alloc); ok && pass.captureCells[alloc] && valOK {
		pass.cells[alloc] = valPath
	}
	if valOK && s.Attributes.HasAttribute(valPath, domain.Functional()) && addrOK {
		// The stored value came from a side-effect-free function; every
		// thread observes the same value, so the location is benign.
		return s.AddAttribute(addrPath, domain.Functional())
	}
	if !addrOK {
		return s
	}
	return pass.recordAccessPath(s, addrPath, domain.Write, instr.Pos())
}

func (pass *FnPass) recordAccess(s domain.State, addr ssa.Value, kind domain.AccessKind, pos token.Pos) domain.State {
	path, ok := pass.valuePath(addr)
	if !ok {
		return s
	}
	return pass.recordAccessPath(s, path, kind, pos)
}

func (pass *FnPass) recordAccessPath(s domain.State, path accesspath.Path, kind domain.AccessKind, pos token.Pos) domain.State {
	if s.Attributes.IsOwned(path) || s.Attributes.IsOwned(rootOf(path)) {
		return s
	}
	if s.Attributes.HasAttribute(path, domain.Functional()) {
		return s
	}
	pre := pass.preconditionFor(s, path)
	elem := domain.MakeAccess(path, kind, pass.fset.Position(pos))
	log.Debugf("   => %s under %s", elem, pre)
	return s.AddAccess(pre, elem)
}

func (pass *FnPass) preconditionFor(s domain.State, path accesspath.Path) domain.AccessPrecondition {
	locked, onMain := bool(s.Locks), bool(s.Threads)
	switch {
	case locked && onMain:
		return domain.ProtectedBy(domain.ByBoth)
	case locked:
		return domain.ProtectedBy(domain.ByLock)
	case onMain:
		return domain.ProtectedBy(domain.ByThread)
	}
	if i, ok := s.Attributes.ConditionalOwnershipIndex(path); ok {
		return domain.UnprotectedIf(i)
	}
	if i, ok := s.Attributes.ConditionalOwnershipIndex(rootOf(path)); ok {
		return domain.UnprotectedIf(i)
	}
	return domain.UnprotectedUnknown()
}

func (pass *FnPass) transferReturn(s domain.State, instr *ssa.Return) domain.State {
	for _, r := range instr.Results {
		p, ok := pass.valuePath(r)
		if !ok {
			continue
		}
		for attr := range s.Attributes[p] {
			s = s.AddAttribute(retPath, attr)
		}
		break // only the first trackable result is summarized
	}
	return s
}

func (pass *FnPass) ownerFunc(s domain.State, actuals []accesspath.Path) func(int) (domain.Attribute, bool) {
	return func(i int) (domain.Attribute, bool) {
		if i >= len(actuals) || !actuals[i].Valid() {
			return domain.Attribute{}, false
		}
		p := actuals[i]
		if s.Attributes.IsOwned(p) || s.Attributes.IsOwned(rootOf(p)) {
			return domain.Owned(), true
		}
		if j, ok := s.Attributes.ConditionalOwnershipIndex(p); ok {
			return domain.OwnedIf(j), true
		}
		if j, ok := s.Attributes.ConditionalOwnershipIndex(rootOf(p)); ok {
			return domain.OwnedIf(j), true
		}
		return domain.Attribute{}, false
	}
}

// valuePath maps an SSA value to the path of the location it denotes,
// seeing through capture cells: an alloc bound into a closure is named by
// the path it stores, so the closure's translated accesses and the
// enclosing function's own accesses agree on one path for the captured
// variable.
func (pass *FnPass) valuePath(v ssa.Value) (accesspath.Path, bool) {
	switch v := v.(type) {
	case *ssa.Alloc:
		if p, ok := pass.cells[v]; ok {
			return p, true
		}
	case *ssa.UnOp:
		if v.Op == token.MUL {
			return pass.valuePath(v.X)
		}
	case *ssa.FieldAddr:
		base, ok := pass.valuePath(v.X)
		if !ok {
			return accesspath.Path{}, false
		}
		return base.Field(fieldName(v.X.Type(), v.Field)), true
	case *ssa.IndexAddr:
		base, ok := pass.valuePath(v.X)
		if !ok {
			return accesspath.Path{}, false
		}
		return base.Index(), true
	}
	return pathOf(v)
}

// clearOwnership drops ownership facts for a path that escaped to another
// goroutine. Subsequent accesses through it are recorded again.
func clearOwnership(s domain.State, path accesspath.Path) domain.State {
	set, ok := s.Attributes[path]
	if !ok {
		return s
	}
	var kept domain.AttributeSet
	for a := range set {
		if a.Kind != domain.AttrOwned {
			kept = kept.Add(a)
		}
	}
	if kept.Len() == set.Len() {
		return s
	}
	out := make(domain.AttributeMap, len(s.Attributes))
	for p, v := range s.Attributes {
		out[p] = v
	}
	if kept.Len() == 0 {
		delete(out, path)
	} else {
		out[path] = kept
	}
	s.Attributes = out
	return s
}

// callActuals lists what a call site binds to the callee's frame: the
// ordinary arguments, then the closure bindings, matching the order in
// which the callee numbers formals and free variables.
func callActuals(common *ssa.CallCommon) []ssa.Value {
	if mc, ok := common.Value.(*ssa.MakeClosure); ok {
		return append(append([]ssa.Value{}, common.Args...), mc.Bindings...)
	}
	return common.Args
}

func (pass *FnPass) actualPaths(args []ssa.Value) []accesspath.Path {
	out := make([]accesspath.Path, len(args))
	for i, a := range args {
		if p, ok := pass.valuePath(a); ok {
			out[i] = p
		}
	}
	return out
}

func rootOf(p accesspath.Path) accesspath.Path {
	return accesspath.FromRoot(p.Root())
}

func stateEqual(a, b domain.State) bool {
	return a.Leq(b) && b.Leq(a)
}

func appendIfNotPresent(worklist []int, x int) []int {
	for _, w := range worklist {
		if w == x {
			return worklist
		}
	}
	return append(worklist, x)
}
