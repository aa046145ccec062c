package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMaySetJoinIsUnion(t *testing.T) {
	a := MaySet[int](nil).Add(1).Add(2)
	b := MaySet[int](nil).Add(2).Add(3)

	j := a.Join(b)
	require.Equal(t, 3, j.Len())
	require.True(t, a.Leq(j))
	require.True(t, b.Leq(j))
	require.False(t, j.Leq(a))
}

func TestMaySetEmptyIsBottom(t *testing.T) {
	var empty MaySet[int]
	a := MaySet[int](nil).Add(1)

	require.True(t, empty.Leq(a))
	require.Equal(t, a, a.Join(empty))
	require.Equal(t, a, empty.Join(a))
}

func TestMustSetJoinIsIntersection(t *testing.T) {
	a := MustSet[int](nil).Add(1).Add(2)
	b := MustSet[int](nil).Add(2).Add(3)

	j := a.Join(b)
	require.Equal(t, 1, j.Len())
	require.True(t, j.Contains(2))
	require.True(t, a.Leq(j), "join loses information in a must lattice")
	require.True(t, b.Leq(j))
}

func TestMustSetLeqIsSuperset(t *testing.T) {
	big := MustSet[int](nil).Add(1).Add(2)
	small := MustSet[int](nil).Add(1)

	require.True(t, big.Leq(small))
	require.False(t, small.Leq(big))
}

func TestAddDoesNotMutateReceiver(t *testing.T) {
	a := MaySet[int](nil).Add(1)
	_ = a.Add(2)
	require.Equal(t, 1, a.Len())

	m := MustSet[int](nil).Add(1)
	_ = m.Add(2)
	require.Equal(t, 1, m.Len())
}
