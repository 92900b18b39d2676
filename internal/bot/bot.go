package bot

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Bot is one independently scheduled worker: a unique identity, a bounded
// inbound message channel, a semaphore for external signalling (a
// weight-1 semaphore.Weighted that no code in this module acquires), and an
// error counter the Supervisor watches (spec.md §4.4).
//
// The inbound channel is held behind a lock rather than exported directly
// so Restart can swap it out from under a running dispatch loop: callers
// read the current channel fresh on every loop iteration via Inbox rather
// than capturing it once.
type Bot struct {
	ID  ID
	Sem *semaphore.Weighted

	mu       sync.RWMutex
	inbound  chan Msg
	inboxCap int

	errCount atomic.Int64
}

// New creates a Bot with the given identity and inbound channel capacity.
func New(id ID, inboxCap int) *Bot {
	if inboxCap < 1 {
		inboxCap = 1
	}
	return &Bot{
		ID:       id,
		inbound:  make(chan Msg, inboxCap),
		inboxCap: inboxCap,
		Sem:      semaphore.NewWeighted(1),
	}
}

// Inbox returns the bot's current inbound channel. A dispatch loop must
// call this on every pass through its select rather than caching the
// result, so a Restart takes effect without relaunching the goroutine.
func (b *Bot) Inbox() chan Msg {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.inbound
}

// Send delivers m to the bot's inbound channel, blocking if it is full
// (bounded-channel backpressure, spec.md §5) unless ctx is cancelled first.
func (b *Bot) Send(ctx context.Context, m Msg) error {
	select {
	case b.Inbox() <- m:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// NoteError increments the bot's error counter and returns the new total.
// The Supervisor compares this against a configured ceiling to decide
// whether to restart the bot.
func (b *Bot) NoteError() int64 { return b.errCount.Add(1) }

// ErrorCount reports the bot's current error counter value.
func (b *Bot) ErrorCount() int64 { return b.errCount.Load() }

// ResetErrors zeroes the error counter; the Supervisor calls it after a
// successful restart. No timer resets the counter.
func (b *Bot) ResetErrors() { b.errCount.Store(0) }

// Restart recreates the bot in place with the same identity and a fresh
// inbound channel (spec.md §4.4/§5), discarding anything still queued on
// the old one. It does not touch the bot's dispatch goroutine: the
// goroutine keeps running and picks up the new channel via Inbox on its
// next loop iteration, so a Supervisor-triggered restart never needs to
// relaunch it. Every *Bot held by a Pool, a Zone's bot slice, or a
// CacheBotFor lookup stays valid across a restart.
func (b *Bot) Restart() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inbound = make(chan Msg, b.inboxCap)
	b.errCount.Store(0)
}
