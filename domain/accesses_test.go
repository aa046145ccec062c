package domain

import (
	"go/token"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/o2lab/racer/accesspath"
)

func pos(line int) token.Position {
	return token.Position{Filename: "main.go", Line: line, Column: 1}
}

func TestAddAccessRoundTrip(t *testing.T) {
	elem := MakeAccess(accesspath.GlobalVar("pkg.counter"), Write, pos(10))
	pre := UnprotectedUnknown()

	d := AccessDomain(nil).AddAccess(pre, elem)
	got := d.GetAccesses(pre)
	require.Equal(t, 1, got.Len())
	require.True(t, got.Contains(elem))
}

func TestGetAccessesDefaultsToEmpty(t *testing.T) {
	var d AccessDomain
	require.Equal(t, 0, d.GetAccesses(ProtectedBy(ByLock)).Len())
}

func TestAccessDomainJoinIsExactUnion(t *testing.T) {
	p := accesspath.GlobalVar("pkg.counter")
	e1 := MakeAccess(p, Write, pos(10))
	e2 := MakeAccess(p, Write, pos(20))
	e3 := MakeAccess(p, Read, pos(30))

	pre1 := ProtectedBy(ByLock)
	pre2 := UnprotectedUnknown()

	s1 := AccessDomain(nil).AddAccess(pre1, e1).AddAccess(pre2, e3)
	s2 := AccessDomain(nil).AddAccess(pre1, e2)

	joined := s1.Join(s2)
	for _, pre := range []AccessPrecondition{pre1, pre2, ProtectedBy(ByThread)} {
		want := s1.GetAccesses(pre).Join(s2.GetAccesses(pre))
		got := joined.GetAccesses(pre)
		require.Equal(t, want.Len(), got.Len(), "bucket %s", pre)
		for e := range want {
			require.True(t, got.Contains(e), "bucket %s missing %s", pre, e)
		}
	}
}

func TestAccessDomainLeq(t *testing.T) {
	p := accesspath.GlobalVar("pkg.counter")
	e1 := MakeAccess(p, Write, pos(10))
	e2 := MakeAccess(p, Read, pos(20))
	pre := UnprotectedUnknown()

	small := AccessDomain(nil).AddAccess(pre, e1)
	big := small.AddAccess(pre, e2)

	require.True(t, small.Leq(big))
	require.False(t, big.Leq(small))
	require.True(t, AccessDomain(nil).Leq(small))
}

func TestTraceElemChaining(t *testing.T) {
	elem := MakeAccess(accesspath.Parameter(0, "x").Field("f"), Write, pos(5))
	require.True(t, elem.IsWrite())
	require.False(t, elem.IsRead())
	require.Equal(t, 0, elem.Depth)

	site := token.Position{Filename: "caller.go", Line: 42}
	chained := elem.InCallee("setField", site)
	require.Equal(t, 1, chained.Depth)
	require.Contains(t, chained.String(), "setField@caller.go:42")
	require.NotEqual(t, elem, chained)

	// Chaining twice keeps the outermost call first.
	outer := token.Position{Filename: "main.go", Line: 7}
	chained2 := chained.InCallee("update", outer)
	require.Equal(t, 2, chained2.Depth)
	require.Equal(t, "update@main.go:7 -> setField@caller.go:42", chained2.Trace)
}
