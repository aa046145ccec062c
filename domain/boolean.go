package domain

// LocksDomain is a must fact: true means some lock is held on every path
// reaching the current point. All locks are deliberately collapsed into this
// single boolean; the analysis trades per-lock precision for scalability and
// the reporting stage assumes the coarse model.
//
// Bottom is true (the unreachable state holds every fact) and join is AND,
// so merging with an unreached branch never weakens the fact. The safe,
// uninformative default is false.
type LocksDomain bool

const LocksBottom LocksDomain = true

func (l LocksDomain) Join(other LocksDomain) LocksDomain {
	return l && other
}

// Leq orders the domain by informativeness: true is below false.
func (l LocksDomain) Leq(other LocksDomain) bool {
	return bool(l) || !bool(other)
}

// ThreadsDomain is a must fact: true means execution is on the distinguished
// main thread on every path reaching the current point. Thread identities
// beyond the single main thread are not tracked.
type ThreadsDomain bool

const ThreadsBottom ThreadsDomain = true

func (t ThreadsDomain) Join(other ThreadsDomain) ThreadsDomain {
	return t && other
}

func (t ThreadsDomain) Leq(other ThreadsDomain) bool {
	return bool(t) || !bool(other)
}
