package domain

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/o2lab/racer/accesspath"
)

func TestAttributeMapJoinIntersects(t *testing.T) {
	p := accesspath.Parameter(0, "x").Field("field")

	// branch 1 proves {Owned, Functional}, branch 2 only {Functional}.
	b1 := AttributeMap(nil).AddAttribute(p, Owned()).AddAttribute(p, Functional())
	b2 := AttributeMap(nil).AddAttribute(p, Functional())

	joined := b1.Join(b2)
	require.False(t, joined.HasAttribute(p, Owned()), "ownership not proven on both branches")
	require.True(t, joined.HasAttribute(p, Functional()))
}

func TestAttributeMapJoinDropsOneSidedPaths(t *testing.T) {
	p := accesspath.LocalVar("x")
	q := accesspath.LocalVar("y")

	b1 := AttributeMap(nil).AddAttribute(p, Owned()).AddAttribute(q, Functional())
	b2 := AttributeMap(nil).AddAttribute(q, Functional())

	joined := b1.Join(b2)
	require.False(t, joined.HasAttribute(p, Owned()),
		"a path mentioned on only one branch carries no facts after the merge")
	require.True(t, joined.HasAttribute(q, Functional()))
}

func TestAttributeMapBottomIsJoinIdentity(t *testing.T) {
	p := accesspath.LocalVar("x")
	m := AttributeMap(nil).AddAttribute(p, Owned())

	require.Equal(t, m, m.Join(nil))
	require.Equal(t, m, AttributeMap(nil).Join(m))
	require.True(t, AttributeMap(nil).Leq(m))
	require.False(t, m.Leq(nil))
}

func TestAddAttributeUnions(t *testing.T) {
	p := accesspath.LocalVar("x")
	m := AttributeMap(nil).AddAttribute(p, Functional())
	m = m.AddAttribute(p, ChoiceOf(LockHeld))

	require.True(t, m.HasAttribute(p, Functional()), "local assertions never remove facts")
	require.True(t, m.HasAttribute(p, ChoiceOf(LockHeld)))
}

func TestAddConditionalOnOwnedIsNoop(t *testing.T) {
	p := accesspath.LocalVar("x")
	m := AttributeMap(nil).AddAttribute(p, Owned())
	m2 := m.AddAttribute(p, OwnedIf(1))

	require.Equal(t, m, m2)
	_, ok := m2.ConditionalOwnershipIndex(p)
	require.False(t, ok)
}

func TestConditionalOwnershipIndex(t *testing.T) {
	p := accesspath.Parameter(0, "x").Field("field")
	m := AttributeMap(nil).AddAttribute(p, OwnedIf(0))

	i, ok := m.ConditionalOwnershipIndex(p)
	require.True(t, ok)
	require.Equal(t, 0, i)

	_, ok = m.ConditionalOwnershipIndex(accesspath.LocalVar("other"))
	require.False(t, ok)
}

func TestChoices(t *testing.T) {
	p := accesspath.LocalVar("flag")
	m := AttributeMap(nil).
		AddAttribute(p, ChoiceOf(LockHeld)).
		AddAttribute(p, ChoiceOf(OnMainThread)).
		AddAttribute(p, Functional())

	require.Equal(t, []Choice{OnMainThread, LockHeld}, m.Choices(p))
	require.Empty(t, m.Choices(accesspath.LocalVar("other")))
}

func TestHasAttributeDefaultsToFalse(t *testing.T) {
	m := AttributeMap(nil).AddAttribute(accesspath.LocalVar("x"), Owned())
	require.False(t, m.HasAttribute(accesspath.LocalVar("y"), Owned()))
}
