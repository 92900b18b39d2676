package bot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolRoundRobin(t *testing.T) {
	b0 := New(ID{Role: RoleCache, Worker: WorkerInd{Ord: 0}}, 1)
	b1 := New(ID{Role: RoleCache, Worker: WorkerInd{Ord: 1}}, 1)
	b2 := New(ID{Role: RoleCache, Worker: WorkerInd{Ord: 2}}, 1)
	p := NewPool([]*Bot{b0, b1, b2})

	var seen []int
	for i := 0; i < 6; i++ {
		b, ok := p.Next()
		require.True(t, ok)
		seen = append(seen, b.ID.Worker.Ord)
	}
	require.Equal(t, []int{0, 1, 2, 0, 1, 2}, seen)
}

func TestPoolRandomStaysInRange(t *testing.T) {
	bots := []*Bot{New(ID{Worker: WorkerInd{Ord: 0}}, 1), New(ID{Worker: WorkerInd{Ord: 1}}, 1)}
	p := NewPool(bots)
	for i := 0; i < 20; i++ {
		b, ok := p.Random()
		require.True(t, ok)
		require.Contains(t, []int{0, 1}, b.ID.Worker.Ord)
	}
}

func TestEmptyPool(t *testing.T) {
	p := NewPool(nil)
	_, ok := p.Next()
	require.False(t, ok)
	_, ok = p.Random()
	require.False(t, ok)
}
