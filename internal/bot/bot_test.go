package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBotSendAndInbox(t *testing.T) {
	b := New(ID{Role: RoleWriter, Worker: WorkerInd{Ord: 0}}, 2)
	err := b.Send(context.Background(), Msg{Kind: Ping})
	require.NoError(t, err)

	select {
	case m := <-b.Inbox():
		require.Equal(t, Ping, m.Kind)
	default:
		t.Fatal("expected message on inbox")
	}
}

func TestBotSendRespectsContextCancellation(t *testing.T) {
	b := New(ID{Role: RoleWriter, Worker: WorkerInd{Ord: 0}}, 1)
	require.NoError(t, b.Send(context.Background(), Msg{Kind: Ping}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := b.Send(ctx, Msg{Kind: Ping})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBotRestartRebuildsChannelAndResetsErrors(t *testing.T) {
	b := New(ID{Role: RoleCache, Worker: WorkerInd{Ord: 0}}, 4)
	b.NoteError()
	b.NoteError()
	require.Equal(t, int64(2), b.ErrorCount())

	old := b.Inbox()
	require.NoError(t, b.Send(context.Background(), Msg{Kind: Ping}))

	b.Restart()

	require.Equal(t, int64(0), b.ErrorCount())
	require.True(t, old != b.Inbox(), "Restart should swap in a fresh channel")
}

func TestBotRestartIsVisibleToARunningDispatchLoop(t *testing.T) {
	b := New(ID{Role: RoleReader, Worker: WorkerInd{Ord: 0}}, 4)
	received := make(chan Msg, 4)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2; i++ {
			m := <-b.Inbox()
			received <- m
		}
	}()

	require.NoError(t, b.Send(context.Background(), Msg{Kind: Ping}))
	<-received

	b.Restart()
	require.NoError(t, b.Send(context.Background(), Msg{Kind: Ok}))

	select {
	case m := <-received:
		require.Equal(t, Ok, m.Kind)
	case <-time.After(time.Second):
		t.Fatal("expected second message after restart")
	}
	<-done
}
