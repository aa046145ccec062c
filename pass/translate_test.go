package pass

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/o2lab/racer/accesspath"
	"github.com/o2lab/racer/domain"
)

func ownerTable(owners map[int]domain.Attribute) func(int) (domain.Attribute, bool) {
	return func(i int) (domain.Attribute, bool) {
		a, ok := owners[i]
		return a, ok
	}
}

func TestTranslatePathRebasesFormals(t *testing.T) {
	calleePath := accesspath.Parameter(0, "x").Field("field")
	actuals := []accesspath.Path{accesspath.LocalVar("y")}

	got, ok := TranslatePath(calleePath, actuals)
	require.True(t, ok)
	require.Equal(t, accesspath.LocalVar("y").Field("field"), got)
}

func TestTranslatePathKeepsGlobals(t *testing.T) {
	g := accesspath.GlobalVar("pkg.counter").Field("n")
	got, ok := TranslatePath(g, nil)
	require.True(t, ok)
	require.Equal(t, g, got)
}

func TestTranslatePathDropsLocals(t *testing.T) {
	_, ok := TranslatePath(accesspath.LocalVar("t0"), nil)
	require.False(t, ok)
}

func TestTranslatePathDropsUnboundFormals(t *testing.T) {
	p := accesspath.Parameter(2, "z")
	_, ok := TranslatePath(p, []accesspath.Path{accesspath.LocalVar("y")})
	require.False(t, ok)

	// An actual the caller could not name leaves the formal unbound too.
	_, ok = TranslatePath(accesspath.Parameter(0, "x"), []accesspath.Path{{}})
	require.False(t, ok)
}

func TestResolveAttributeOwnership(t *testing.T) {
	owners := ownerTable(map[int]domain.Attribute{
		0: domain.Owned(),
		1: domain.OwnedIf(3),
	})

	got, ok := ResolveAttribute(domain.OwnedIf(0), owners)
	require.True(t, ok)
	require.Equal(t, domain.Owned(), got, "owned actual discharges the condition")

	got, ok = ResolveAttribute(domain.OwnedIf(1), owners)
	require.True(t, ok)
	require.Equal(t, domain.OwnedIf(3), got, "condition rebinds to the caller's formal")

	_, ok = ResolveAttribute(domain.OwnedIf(2), owners)
	require.False(t, ok, "nothing known about the actual drops the claim")

	got, ok = ResolveAttribute(domain.Functional(), owners)
	require.True(t, ok)
	require.Equal(t, domain.Functional(), got)
}

func TestResolveAttributeSet(t *testing.T) {
	owners := ownerTable(map[int]domain.Attribute{0: domain.Owned()})
	var set domain.AttributeSet
	set = set.Add(domain.OwnedIf(0))
	set = set.Add(domain.OwnedIf(1))
	set = set.Add(domain.Functional())

	resolved := ResolveAttributeSet(set, owners)
	require.True(t, resolved.Contains(domain.Owned()))
	require.True(t, resolved.Contains(domain.Functional()))
	require.Equal(t, 2, resolved.Len())
}

func TestTranslatePreconditionProtectedStaysPut(t *testing.T) {
	pre := domain.ProtectedBy(domain.ByLock)
	got, keep := TranslatePrecondition(pre, false, false, nil)
	require.True(t, keep)
	require.Equal(t, pre, got)
}

func TestTranslatePreconditionEscalation(t *testing.T) {
	cases := []struct {
		locks, threads bool
		want           domain.AccessPrecondition
	}{
		{false, false, domain.UnprotectedUnknown()},
		{true, false, domain.ProtectedBy(domain.ByLock)},
		{false, true, domain.ProtectedBy(domain.ByThread)},
		{true, true, domain.ProtectedBy(domain.ByBoth)},
	}
	for _, tc := range cases {
		got, keep := TranslatePrecondition(domain.UnprotectedUnknown(),
			domain.LocksDomain(tc.locks), domain.ThreadsDomain(tc.threads), nil)
		require.True(t, keep)
		require.Equal(t, tc.want, got, "locks=%t threads=%t", tc.locks, tc.threads)
	}
}

func TestTranslatePreconditionOwnershipResolution(t *testing.T) {
	owners := ownerTable(map[int]domain.Attribute{
		0: domain.Owned(),
		1: domain.OwnedIf(2),
	})

	_, keep := TranslatePrecondition(domain.UnprotectedIf(0), false, false, owners)
	require.False(t, keep, "access through an owned actual is safe")

	got, keep := TranslatePrecondition(domain.UnprotectedIf(1), false, false, owners)
	require.True(t, keep)
	require.Equal(t, domain.UnprotectedIf(2), got)

	// Unknown ownership falls back to escalation by the caller context.
	got, keep = TranslatePrecondition(domain.UnprotectedIf(5), true, false, owners)
	require.True(t, keep)
	require.Equal(t, domain.ProtectedBy(domain.ByLock), got)
}
