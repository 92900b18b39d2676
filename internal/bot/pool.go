package bot

import (
	"math/rand"
	"sync/atomic"
)

// Pool holds the bots of one Role within one zone and supports round-robin
// or random selection among them, matching spec.md §4.4's "round-robin or
// random selection within a pool is available". Grounded on the teacher's
// shard_registry node-selection helpers, generalized from HTTP node targets
// to in-process Bot pointers.
type Pool struct {
	bots []*Bot
	next atomic.Uint64
}

// NewPool creates a Pool over bots (must be non-empty for Next/Random to
// return a usable result).
func NewPool(bots []*Bot) *Pool { return &Pool{bots: bots} }

// Len reports the pool size.
func (p *Pool) Len() int { return len(p.bots) }

// All returns every bot in the pool, in index order.
func (p *Pool) All() []*Bot { return p.bots }

// Next returns the next bot in round-robin order.
func (p *Pool) Next() (*Bot, bool) {
	if len(p.bots) == 0 {
		return nil, false
	}
	i := p.next.Add(1) - 1
	return p.bots[int(i%uint64(len(p.bots)))], true
}

// Random returns a uniformly random bot from the pool.
func (p *Pool) Random() (*Bot, bool) {
	if len(p.bots) == 0 {
		return nil, false
	}
	return p.bots[rand.Intn(len(p.bots))], true
}

// At returns the bot at ordinal ord, if in range.
func (p *Pool) At(ord int) (*Bot, bool) {
	if ord < 0 || ord >= len(p.bots) {
		return nil, false
	}
	return p.bots[ord], true
}
