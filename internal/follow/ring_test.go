package follow

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingDrainOrder(t *testing.T) {
	r := NewRing[int](4)
	for i := 1; i <= 3; i++ {
		r.Push(i)
	}
	require.Equal(t, 3, r.Len())
	assert.Equal(t, []int{1, 2, 3}, r.Drain())
	assert.Equal(t, 0, r.Len())
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing[string](3)
	r.Push("a")
	r.Push("b")
	r.Push("c")
	r.Push("d") // evicts exactly "a"
	require.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"b", "c", "d"}, r.Drain())
}

func TestRingLastMinOfPushesAndCapacity(t *testing.T) {
	const capacity = 5
	for pushes := 0; pushes <= 12; pushes++ {
		r := NewRing[int](capacity)
		for i := 0; i < pushes; i++ {
			r.Push(i)
		}
		want := pushes
		if want > capacity {
			want = capacity
		}
		got := r.Drain()
		require.Len(t, got, want, "pushes=%d", pushes)
		for j, v := range got {
			assert.Equal(t, pushes-want+j, v, "pushes=%d index=%d", pushes, j)
		}
	}
}

func TestRingZeroCapacity(t *testing.T) {
	for _, capacity := range []int{0, -1} {
		t.Run(fmt.Sprintf("capacity=%d", capacity), func(t *testing.T) {
			r := NewRing[int](capacity)
			r.Push(1)
			r.Push(2)
			assert.Equal(t, 0, r.Len())
			assert.Nil(t, r.Drain())
		})
	}
}

func TestRingDrainEmpty(t *testing.T) {
	r := NewRing[int](2)
	assert.Nil(t, r.Drain())
}

func TestRingReusableAfterDrain(t *testing.T) {
	r := NewRing[int](2)
	r.Push(1)
	r.Push(2)
	r.Push(3)
	require.Equal(t, []int{2, 3}, r.Drain())
	r.Push(7)
	assert.Equal(t, []int{7}, r.Drain())
}
