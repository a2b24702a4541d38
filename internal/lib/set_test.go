package lib

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetAddContains(t *testing.T) {
	s := NewSet[string]()
	s.Add("a", "b")

	require.True(t, s.Contains("a"))
	require.True(t, s.Contains("b"))
	require.False(t, s.Contains("c"))
	require.Equal(t, 2, s.Len())

	// duplicates collapse
	s.Add("a")
	require.Equal(t, 2, s.Len())
}

func TestSetRemove(t *testing.T) {
	s := NewSetFromSlice([]int{1, 2, 3})

	require.True(t, s.Remove(2))
	require.False(t, s.Remove(2))
	require.Equal(t, 2, s.Len())
}

func TestSetToSliceAndClear(t *testing.T) {
	s := NewSetFromSlice([]int{1, 2, 3})
	require.ElementsMatch(t, []int{1, 2, 3}, s.ToSlice())

	s.Clear()
	require.Equal(t, 0, s.Len())
}
