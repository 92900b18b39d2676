package ozone

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/ozerr"
	"github.com/dreamware/ozone/internal/shardmap"
)

// Message payloads exchanged between a zone's bots. bot.Msg.Payload is
// `any` specifically so these domain types can live here rather than in
// the bot package, avoiding an import cycle (bot must not depend on ozone).

// InsertMsg is the cache bot's Insert payload (spec.md §4.7).
type InsertMsg struct {
	KeyBytes    []byte
	Entry       CacheEntry
	InlineValue []byte
}

// InsertResultMsg answers an InsertMsg.
type InsertResultMsg struct {
	Result InsertResult
}

// ReadCacheMsg asks a cache bot for a key's entry.
type ReadCacheMsg struct {
	KeyBytes []byte
}

// ReadCacheResultMsg answers a ReadCacheMsg.
type ReadCacheResultMsg struct {
	Entry  CacheEntry
	Inline []byte
	Found  bool
}

// WriteMsg is a writer bot's append request (spec.md §4.8).
type WriteMsg struct {
	Req      WriteRequest
	KeyBytes []byte
}

// WriteResultMsg answers a WriteMsg.
type WriteResultMsg struct {
	Loc FileLocation
}

// DumpCacheMsg asks one cache bot to dump its shard (spec.md §4.11).
type DumpCacheMsg struct{ Ord int }

// DumpCacheResultMsg answers a DumpCacheMsg.
type DumpCacheResultMsg struct{ Entries map[string]CacheEntry }

// GCControlMsg activates a gc pass for one file (spec.md §4.10).
type GCControlMsg struct{ FileNum int64 }

// GCCompletedMsg reports a finished gc pass (spec.md §4.10 step 7).
type GCCompletedMsg struct{ Result GCResult }

// Zone wires one zone's bots — cache, writer, reader, file, init/gc —
// with a Supervisor watching the cache, writer and reader bots, the per-zone instantiation of the bot fabric
// (spec.md §4.4). Each pool's size comes from Config; cache bots are
// indexed 1:1 with ZoneCache shards so a bot ID always names exactly one
// shard.
type Zone struct {
	Ind   bot.ZoneInd
	Dir   ZoneDir
	Cache *ZoneCache
	Files *FileRegistry

	CacheBots  []*bot.Bot
	WriterBots []*bot.Bot
	ReaderBots []*bot.Bot
	FileBot    *bot.Bot
	GCBot      *bot.Bot

	writerPool *bot.Pool
	readerPool *bot.Pool

	Sup *bot.Supervisor
	log *zap.SugaredLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	csum        Checksummer
	requestWait time.Duration
}

// NewZone creates, initialises (via InitZone), and wires one zone's bots.
// It does not start their goroutines; call Start for that.
func NewZone(ind bot.ZoneInd, root string, cfg Config, log *zap.SugaredLogger) (*Zone, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	dir, err := NewZoneDir(root, ind)
	if err != nil {
		return nil, err
	}
	cache := NewZoneCache(cfg.NumCBotsPerZone, cfg.CacheLRUSize, defaultHasher)
	files, err := InitZone(dir, cfg.DataFileMaxBytes, cache, defaultChecksummer, log)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	z := &Zone{
		Ind: ind, Dir: dir, Cache: cache, Files: files,
		Sup: bot.NewSupervisor(log), log: log,
		ctx: ctx, cancel: cancel,
		csum:        defaultChecksummer,
		requestWait: cfg.BotRequestTimeout.Duration,
	}

	for i := 0; i < cfg.NumCBotsPerZone; i++ {
		z.CacheBots = append(z.CacheBots, bot.New(bot.ID{Role: bot.RoleCache, Worker: bot.WorkerInd{Zone: ind, Ord: i}}, 64))
	}
	for i := 0; i < cfg.NumWBotsPerZone; i++ {
		z.WriterBots = append(z.WriterBots, bot.New(bot.ID{Role: bot.RoleWriter, Worker: bot.WorkerInd{Zone: ind, Ord: i}}, 64))
	}
	for i := 0; i < cfg.NumRBotsPerZone; i++ {
		z.ReaderBots = append(z.ReaderBots, bot.New(bot.ID{Role: bot.RoleReader, Worker: bot.WorkerInd{Zone: ind, Ord: i}}, 64))
	}
	z.FileBot = bot.New(bot.ID{Role: bot.RoleFile, Worker: bot.WorkerInd{Zone: ind}}, 64)
	z.GCBot = bot.New(bot.ID{Role: bot.RoleInitGC, Worker: bot.WorkerInd{Zone: ind}}, 8)

	z.writerPool = bot.NewPool(z.WriterBots)
	z.readerPool = bot.NewPool(z.ReaderBots)

	return z, nil
}

// Start launches every bot's message loop and begins supervision.
func (z *Zone) Start(checkInterval time.Duration) {
	for i, b := range z.CacheBots {
		ord := i
		bb := b
		z.wg.Add(1)
		go func() { defer z.wg.Done(); z.runCacheBot(bb, ord) }()
		z.Sup.Watch(bot.Watched{Bot: bb, Ceiling: 50, Window: time.Minute, Restart: func() error {
			z.log.Warnw("restarting cache bot", "zone", z.Ind, "ord", ord)
			bb.Restart()
			return nil
		}})
	}
	for _, b := range z.WriterBots {
		bb := b
		z.wg.Add(1)
		go func() { defer z.wg.Done(); z.runWriterBot(bb) }()
		z.Sup.Watch(bot.Watched{Bot: bb, Ceiling: 50, Window: time.Minute, Restart: func() error {
			z.log.Warnw("restarting writer bot", "zone", z.Ind, "bot", bb.ID.String())
			bb.Restart()
			return nil
		}})
	}
	for _, b := range z.ReaderBots {
		bb := b
		z.wg.Add(1)
		go func() { defer z.wg.Done(); z.runReaderBot(bb) }()
		z.Sup.Watch(bot.Watched{Bot: bb, Ceiling: 50, Window: time.Minute, Restart: func() error {
			z.log.Warnw("restarting reader bot", "zone", z.Ind, "bot", bb.ID.String())
			bb.Restart()
			return nil
		}})
	}
	z.wg.Add(1)
	go func() { defer z.wg.Done(); z.runFileBot(z.FileBot) }()
	z.wg.Add(1)
	go func() { defer z.wg.Done(); z.runGCBot(z.GCBot) }()

	z.Sup.Start(checkInterval)
}

// Stop cancels every bot's loop and waits for them to exit.
func (z *Zone) Stop() {
	z.cancel()
	z.Sup.Stop()
	z.wg.Wait()
	z.Files.Close()
}

// pickWriterBot chooses a writer bot at random (spec.md's ordering section:
// "writer bots are chosen randomly, so two near-simultaneous writes to the
// same key may arrive at the cache bot in either order"). Linearisation for
// a single key comes entirely from the owning cache bot serialising Insert,
// not from writer-bot affinity.
func (z *Zone) pickWriterBot(keyBytes []byte) *bot.Bot {
	b, _ := z.writerPool.Random()
	return b
}

// pickReaderBot chooses a reader bot at random; any reader bot can resolve
// any FileLocation, so there is no reason to pin a key to one.
func (z *Zone) pickReaderBot(keyBytes []byte) *bot.Bot {
	b, _ := z.readerPool.Random()
	return b
}

// CacheBotFor returns the cache bot owning keyBytes' shard.
func (z *Zone) CacheBotFor(keyBytes []byte) (*bot.Bot, shardmap.HashForm) {
	h := z.Cache.Key(keyBytes)
	return z.CacheBots[z.Cache.ShardIndex(h)], h
}

func (z *Zone) runCacheBot(b *bot.Bot, ord int) {
	for {
		select {
		case <-z.ctx.Done():
			return
		case m := <-b.Inbox():
			z.dispatchCacheMsg(b, ord, m)
		}
	}
}

func (z *Zone) dispatchCacheMsg(b *bot.Bot, ord int, m bot.Msg) {
	switch m.Kind {
	case bot.Insert:
		payload, ok := m.Payload.(InsertMsg)
		if !ok {
			z.respondErr(b, m, "bad insert payload")
			return
		}
		h := z.Cache.Key(payload.KeyBytes)
		res := z.Cache.Insert(h, string(payload.KeyBytes), payload.Entry, payload.InlineValue)
		z.respond(m, bot.Msg{Kind: bot.Insert, Payload: InsertResultMsg{Result: res}})
	case bot.ReadCache:
		payload, ok := m.Payload.(ReadCacheMsg)
		if !ok {
			z.respondErr(b, m, "bad read_cache payload")
			return
		}
		h := z.Cache.Key(payload.KeyBytes)
		entry, inline, found := z.Cache.Lookup(h, string(payload.KeyBytes))
		z.respond(m, bot.Msg{Kind: bot.Value, Payload: ReadCacheResultMsg{Entry: entry, Inline: inline, Found: found}})
	case bot.DumpCacheRequest:
		z.respond(m, bot.Msg{Kind: bot.DumpCacheResponse, Payload: DumpCacheResultMsg{Entries: z.Cache.DumpShard(ord)}})
	case bot.ClearCache:
		z.Cache.Clear()
		z.respond(m, bot.Msg{Kind: bot.Ok})
	case bot.Ping:
		z.respond(m, bot.Msg{Kind: bot.Ok, From: b.ID})
	default:
		z.respondErr(b, m, "unhandled cache bot message kind")
	}
}

func (z *Zone) runWriterBot(b *bot.Bot) {
	for {
		select {
		case <-z.ctx.Done():
			return
		case m := <-b.Inbox():
			z.dispatchWriterMsg(b, m)
		}
	}
}

func (z *Zone) dispatchWriterMsg(b *bot.Bot, m bot.Msg) {
	switch m.Kind {
	case bot.Write:
		payload, ok := m.Payload.(WriteMsg)
		if !ok {
			z.respondErr(b, m, "bad write payload")
			return
		}
		live := z.Files.Live()
		loc, err := live.Append(payload.Req)
		if err != nil {
			b.NoteError()
			z.respond(m, bot.Msg{Kind: bot.Error, Err: err})
			return
		}

		cacheBot, _ := z.CacheBotFor(payload.KeyBytes)
		insResp := bot.NewResponder(1)
		_ = cacheBot.Send(z.ctx, bot.Msg{Kind: bot.Insert, From: b.ID, Resp: insResp, Payload: InsertMsg{
			KeyBytes:    payload.KeyBytes,
			Entry:       CacheEntry{Kind: LocatedValue, Loc: loc},
			InlineValue: payload.Req.ValueDaticleBytes,
		}})
		if insMsg, err := insResp.RecvTimeout(z.requestWait); err == nil {
			if res, ok := insMsg.Payload.(InsertResultMsg); ok && res.Result.PriorExisted {
				_ = z.Files.MarkOldAt(res.Result.PriorLocation.FileNum, res.Result.PriorLocation.StartOff)
			}
		}

		if _, err := z.Files.RotateIfNeeded(); err != nil {
			z.log.Warnw("live file rotation failed", "zone", z.Ind, "error", err)
		}
		z.respond(m, bot.Msg{Kind: bot.Ok, Payload: WriteResultMsg{Loc: loc}})
	case bot.Ping:
		z.respond(m, bot.Msg{Kind: bot.Ok, From: b.ID})
	default:
		z.respondErr(b, m, "unhandled writer bot message kind")
	}
}

func (z *Zone) runReaderBot(b *bot.Bot) {
	for {
		select {
		case <-z.ctx.Done():
			return
		case m := <-b.Inbox():
			z.dispatchReaderMsg(b, m)
		}
	}
}

func (z *Zone) dispatchReaderMsg(b *bot.Bot, m bot.Msg) {
	switch m.Kind {
	case bot.Read:
		loc, ok := m.Payload.(FileLocation)
		if !ok {
			z.respondErr(b, m, "bad read payload")
			return
		}
		var (
			valueBytes []byte
			err        error
		)
		live := z.Files.Live()
		if live.FileNum() == loc.FileNum {
			valueBytes, err = ReadFromLiveFile(live, loc, z.csum)
		} else {
			valueBytes, err = ReadValueAt(z.Dir, loc, z.csum)
		}
		if err != nil {
			b.NoteError()
			z.respond(m, bot.Msg{Kind: bot.Error, Err: err})
			return
		}
		z.respond(m, bot.Msg{Kind: bot.Value, Payload: valueBytes})
	case bot.Ping:
		z.respond(m, bot.Msg{Kind: bot.Ok, From: b.ID})
	default:
		z.respondErr(b, m, "unhandled reader bot message kind")
	}
}

func (z *Zone) runFileBot(b *bot.Bot) {
	for {
		select {
		case <-z.ctx.Done():
			return
		case m := <-b.Inbox():
			switch m.Kind {
			case bot.DumpFileStatesRequest:
				z.respond(m, bot.Msg{Kind: bot.DumpFileStatesResponse, Payload: z.fileStateSnapshot()})
			case bot.Ping:
				z.respond(m, bot.Msg{Kind: bot.Ok, From: b.ID})
			default:
				z.respondErr(b, m, "unhandled file bot message kind")
			}
		}
	}
}

func (z *Zone) runGCBot(b *bot.Bot) {
	for {
		select {
		case <-z.ctx.Done():
			return
		case m := <-b.Inbox():
			switch m.Kind {
			case bot.GcControl:
				payload, ok := m.Payload.(GCControlMsg)
				if !ok {
					z.respondErr(b, m, "bad gc_control payload")
					continue
				}
				res, err := RunGC(z.Files, z.Cache, payload.FileNum, z.csum, z.log)
				if err != nil {
					b.NoteError()
					z.respond(m, bot.Msg{Kind: bot.Error, Err: err})
					continue
				}
				z.respond(m, bot.Msg{Kind: bot.GcCompleted, Payload: GCCompletedMsg{Result: res}})
			case bot.Ping:
				z.respond(m, bot.Msg{Kind: bot.Ok, From: b.ID})
			default:
				z.respondErr(b, m, "unhandled gc bot message kind")
			}
		}
	}
}

// FileStateSnapshot is one file's accounting, for the operator
// "dump-file-states" command (spec.md §4.11).
type FileStateSnapshot struct {
	FileNum   int64
	DataSize  int64
	IndexSize int64
	OldSum    int64
	GCRatio   float64
}

func (z *Zone) fileStateSnapshot() []FileStateSnapshot {
	var out []FileStateSnapshot
	nums, err := z.Dir.ListFileNums()
	if err != nil {
		return out
	}
	for _, n := range nums {
		st, ok := z.Files.State(n)
		if !ok {
			continue
		}
		out = append(out, FileStateSnapshot{
			FileNum: n, DataSize: st.DataSize(), IndexSize: st.IndexSize(),
			OldSum: st.OldSum(), GCRatio: st.GCRatio(),
		})
	}
	return out
}

func (z *Zone) respond(m bot.Msg, reply bot.Msg) {
	if m.Resp == nil {
		return
	}
	_ = m.Resp.Send(reply)
}

func (z *Zone) respondErr(b *bot.Bot, m bot.Msg, msg string) {
	b.NoteError()
	if m.Resp == nil {
		return
	}
	_ = m.Resp.Send(bot.Msg{Kind: bot.Error, From: b.ID, Err: ozerr.New(ozerr.Bug, msg)})
}
