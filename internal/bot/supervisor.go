package bot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Watched is a bot the Supervisor monitors, paired with the policy used to
// decide when it has failed excessively and the restart hook used to bring
// it back.
type Watched struct {
	Bot      *Bot
	Ceiling  int64         // error count that trips a restart
	Window   time.Duration // stored with the registration; checkAll does not read it
	Restart  func() error  // recreates the bot in place, preserving its identity
}

// Supervisor holds the channel table for every bot in the fabric and
// restarts any bot whose error counter has reached its ceiling at one of
// its periodic checks (spec.md §4.4). The check interval is the argument to
// Start. Counters are not reset on a timer: a bot's count is zeroed only by
// a restart, so errors accumulate across checks until the ceiling is hit. Grounded on the teacher's HealthMonitor:
// the same ctx/cancel/WaitGroup lifecycle and periodic-check loop, adapted
// from polling HTTP /health endpoints to polling in-process error counters.
type Supervisor struct {
	log *zap.SugaredLogger

	mu      sync.RWMutex
	watched map[ID]*Watched

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSupervisor creates a Supervisor. A nil logger is replaced with a no-op
// logger so callers never need a nil check.
func NewSupervisor(log *zap.SugaredLogger) *Supervisor {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		log:     log,
		watched: make(map[ID]*Watched),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Watch registers a bot for supervision. Calling Watch again for the same
// ID replaces the prior registration.
func (s *Supervisor) Watch(w Watched) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watched[w.Bot.ID] = &w
}

// Lookup returns the Bot registered under id, if any — the channel-table
// access every other bot uses to address a peer by identity.
func (s *Supervisor) Lookup(id ID) (*Bot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.watched[id]
	if !ok {
		return nil, false
	}
	return w.Bot, true
}

// Start begins the periodic supervision loop: every checkInterval, each
// watched bot's error counter is compared against its ceiling.
func (s *Supervisor) Start(checkInterval time.Duration) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.checkAll()
			}
		}
	}()
}

// Stop cancels the supervision loop and waits for it to exit.
func (s *Supervisor) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Supervisor) checkAll() {
	s.mu.RLock()
	snapshot := make([]*Watched, 0, len(s.watched))
	for _, w := range s.watched {
		snapshot = append(snapshot, w)
	}
	s.mu.RUnlock()

	for _, w := range snapshot {
		if w.Bot.ErrorCount() < w.Ceiling {
			continue
		}
		s.log.Warnw("bot exceeded error ceiling, restarting",
			"bot", w.Bot.ID.String(), "errors", w.Bot.ErrorCount(), "ceiling", w.Ceiling)
		if err := w.Restart(); err != nil {
			s.log.Errorw("bot restart failed", "bot", w.Bot.ID.String(), "error", err)
			continue
		}
		w.Bot.ResetErrors()
	}
}
