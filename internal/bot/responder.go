package bot

import (
	"time"

	"github.com/google/uuid"

	"github.com/dreamware/ozone/internal/ozerr"
)

// Responder is a typed return channel plus an optional origin bot id and a
// randomly generated ticket (spec.md §4.4). A Null responder accepts and
// discards every send: it backs fire-and-forget sends where the caller
// doesn't want a reply.
type Responder struct {
	ch     chan Msg
	origin *ID
	ticket uuid.UUID
	null   bool
}

// NewResponder creates a Responder buffered to hold up to buf pending
// replies (use a larger buf for recv_number callers expecting several).
func NewResponder(buf int) *Responder {
	if buf < 1 {
		buf = 1
	}
	return &Responder{ch: make(chan Msg, buf), ticket: uuid.New()}
}

// NewResponderFrom is like NewResponder but records the sending bot's
// identity, so a reply can be routed back without a separate lookup.
func NewResponderFrom(id ID, buf int) *Responder {
	r := NewResponder(buf)
	r.origin = &id
	return r
}

// NullResponder returns a Responder for fire-and-forget sends: every Send
// succeeds immediately and the message is discarded.
func NullResponder() *Responder {
	return &Responder{null: true}
}

// Ticket returns the Responder's correlation id.
func (r *Responder) Ticket() uuid.UUID { return r.ticket }

// Origin returns the id of the bot that created this Responder, if recorded.
func (r *Responder) Origin() (ID, bool) {
	if r.origin == nil {
		return ID{}, false
	}
	return *r.origin, true
}

// Send delivers m to the responder's channel. It never blocks: a full
// channel reports a Channel-kind error rather than stalling the sending
// bot (spec.md §5 backpressure: senders fail-fast per message policy here).
func (r *Responder) Send(m Msg) error {
	if r.null {
		return nil
	}
	select {
	case r.ch <- m:
		return nil
	default:
		return ozerr.New(ozerr.Channel, "responder channel full")
	}
}

// RecvTimeout waits up to d for a single reply.
func (r *Responder) RecvTimeout(d time.Duration) (Msg, error) {
	if r.null {
		return Msg{}, ozerr.New(ozerr.Bug, "RecvTimeout on a null responder")
	}
	select {
	case m := <-r.ch:
		return m, nil
	case <-time.After(d):
		return Msg{}, ozerr.New(ozerr.Timeout, "recv_timeout expired")
	}
}

// RecvNumber collects up to n replies, spending at most maxWait in total and
// at most perMsgWait waiting for any single reply (perMsgWait <= 0 means no
// per-message cap beyond the remaining total budget). When the wait expires
// before n replies arrive, RecvNumber returns whatever it has collected: it
// never fails on a partial collection unless strict is true, matching
// spec.md §4.4's requirement that operator broadcasts tolerate an
// unresponsive bot.
func (r *Responder) RecvNumber(n int, maxWait, perMsgWait time.Duration, strict bool) ([]Msg, error) {
	if r.null {
		return nil, ozerr.New(ozerr.Bug, "RecvNumber on a null responder")
	}
	deadline := time.Now().Add(maxWait)
	out := make([]Msg, 0, n)
	for len(out) < n {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			if strict {
				return out, ozerr.New(ozerr.Timeout, "recv_number expired before collecting n replies")
			}
			break
		}
		wait := remaining
		if perMsgWait > 0 && perMsgWait < wait {
			wait = perMsgWait
		}
		select {
		case m := <-r.ch:
			out = append(out, m)
		case <-time.After(wait):
			if strict {
				return out, ozerr.New(ozerr.Timeout, "recv_number expired before collecting n replies")
			}
			return out, nil
		}
	}
	return out, nil
}
