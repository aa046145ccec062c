package domain

// AccessDomain buckets the accesses observed so far by the precondition under
// which each occurred. It is a may map: join is pointwise union, a missing
// bucket is empty, and the empty (or nil) map is bottom.
type AccessDomain map[AccessPrecondition]PathSet

func (d AccessDomain) Join(other AccessDomain) AccessDomain {
	return joinMayMap(d, other)
}

func (d AccessDomain) Leq(other AccessDomain) bool {
	return leqMayMap(d, other)
}

// AddAccess returns d with elem unioned into the bucket for pre. Other
// buckets are unchanged.
func (d AccessDomain) AddAccess(pre AccessPrecondition, elem TraceElem) AccessDomain {
	if !elem.Access.Path.Valid() {
		panic("domain: AddAccess on invalid path")
	}
	out := make(AccessDomain, len(d)+1)
	for p, s := range d {
		out[p] = s
	}
	out[pre] = out[pre].Add(elem)
	return out
}

// GetAccesses returns the bucket for pre, which is empty when no access has
// been recorded under it.
func (d AccessDomain) GetAccesses(pre AccessPrecondition) PathSet {
	return d[pre]
}
