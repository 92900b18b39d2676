package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSupervisorRestartsBotOverCeiling(t *testing.T) {
	s := NewSupervisor(nil)
	defer s.Stop()

	b := New(ID{Role: RoleWriter, Worker: WorkerInd{Zone: 0, Ord: 0}}, 1)
	restarted := make(chan struct{}, 1)
	s.Watch(Watched{
		Bot:     b,
		Ceiling: 3,
		Window:  10 * time.Millisecond,
		Restart: func() error {
			restarted <- struct{}{}
			return nil
		},
	})

	b.NoteError()
	b.NoteError()
	b.NoteError()

	s.Start(5 * time.Millisecond)

	select {
	case <-restarted:
	case <-time.After(time.Second):
		t.Fatal("expected restart to fire")
	}
	require.Equal(t, int64(0), b.ErrorCount())
}

func TestSupervisorLookup(t *testing.T) {
	s := NewSupervisor(nil)
	defer s.Stop()
	b := New(ID{Role: RoleCache}, 1)
	s.Watch(Watched{Bot: b, Ceiling: 100, Restart: func() error { return nil }})

	got, ok := s.Lookup(ID{Role: RoleCache})
	require.True(t, ok)
	require.Same(t, b, got)

	_, ok = s.Lookup(ID{Role: RoleReader})
	require.False(t, ok)
}
