package ozone

import (
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/daticle"
	"github.com/dreamware/ozone/internal/ozerr"
)

// tombstoneUsrCode marks a deleted key's stored value: a Usr Daticle whose
// inner value is Empty (spec.md §4.2's delete semantics). Usr is never the
// Kind a live value's storage wrapper uses (those are always BU* or, for a
// chunked bunch key, a UTup), so a tombstone is unambiguous on read.
const tombstoneUsrCode uint16 = 1

const tombstoneLabel = "deleted"

// Engine is the storage engine's API facade (spec.md §4.11): Put, Get, and
// Delete normalise and route a user key to its owning zone, then hand the
// work to that zone's writer/reader/cache bots; operator commands broadcast
// across every zone and aggregate the replies.
type Engine struct {
	cfg           Config
	zones         []*Zone
	shardsPerZone int
	log           *zap.SugaredLogger
}

// New builds every configured zone (each running InitZone's recovery pass)
// and returns an Engine ready to Start.
func New(cfg Config, log *zap.SugaredLogger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	zones := make([]*Zone, cfg.NumZones)
	for i := range zones {
		z, err := NewZone(bot.ZoneInd(i), cfg.RootDir, cfg, log)
		if err != nil {
			return nil, err
		}
		zones[i] = z
	}
	return &Engine{cfg: cfg, zones: zones, shardsPerZone: cfg.NumCBotsPerZone, log: log}, nil
}

// Start launches every zone's bots and begins supervision.
func (e *Engine) Start(checkInterval time.Duration) {
	for _, z := range e.zones {
		z.Start(checkInterval)
	}
}

// Stop cancels every zone's bots and waits for them to exit.
func (e *Engine) Stop() {
	for _, z := range e.zones {
		z.Stop()
	}
}

func (e *Engine) route(key daticle.Value, override SchemesOverride) (zoneInd bot.ZoneInd, keyBytes []byte) {
	canonical, hashBytes := NormalizeKey(key, override.hasher(), override.salt())
	zoneInd, _ = ChooseHash(hashBytes, e.cfg.NumZones, e.shardsPerZone)
	return zoneInd, daticle.Encode(canonical)
}

// Put stores val under key, chunking it first if it exceeds the configured
// (or overridden) threshold, and returns a Responder carrying the resulting
// FileLocation of the top-level record on success (spec.md §4.3, §4.11).
func (e *Engine) Put(key, val daticle.Value, userID uint64, override SchemesOverride) *bot.Responder {
	resp := bot.NewResponder(1)
	loc, err := e.put(key, val, userID, override)
	if err != nil {
		_ = resp.Send(bot.Msg{Kind: bot.Error, Err: err})
		return resp
	}
	_ = resp.Send(bot.Msg{Kind: bot.Ok, Payload: loc})
	return resp
}

func (e *Engine) put(key, val daticle.Value, userID uint64, override SchemesOverride) (FileLocation, error) {
	zoneInd, keyBytes := e.route(key, override)
	meta := NowMeta(userID)
	csum := override.checksummer()

	payload := daticle.Encode(val)
	if override.Encryptor != nil {
		ciphertext, err := override.Encryptor.Encrypt(payload)
		if err != nil {
			return FileLocation{}, err
		}
		payload = ciphertext
	}

	chunkCfg := e.cfg.Chunk.toDaticle()
	if override.Chunk != nil {
		chunkCfg = override.Chunk.toDaticle()
	}

	chunked, ok := daticle.Chunk(payload, chunkCfg)
	if !ok {
		storedBytes := daticle.Encode(daticle.BU(payload))
		return e.writeOne(zoneInd, keyBytes, storedBytes, meta, csum)
	}

	for i, partKey := range chunked.Chunks {
		partZoneInd, partKeyBytes := e.route(partKey.AsValue(), override)
		partStoredBytes := daticle.Encode(daticle.BU(chunked.Bytes[i]))
		if _, err := e.writeOne(partZoneInd, partKeyBytes, partStoredBytes, meta, csum); err != nil {
			return FileLocation{}, err
		}
	}
	bunchStoredBytes := daticle.Encode(chunked.Bunch.AsValue())
	return e.writeOne(zoneInd, keyBytes, bunchStoredBytes, meta, csum)
}

func (e *Engine) writeOne(zoneInd bot.ZoneInd, keyBytes, storedValueBytes []byte, meta Meta, csum Checksummer) (FileLocation, error) {
	zone := e.zones[zoneInd]
	writerBot := zone.pickWriterBot(keyBytes)
	resp := bot.NewResponder(1)
	req := WriteMsg{
		Req: WriteRequest{
			KeyDaticleBytes:   keyBytes,
			ValueDaticleBytes: storedValueBytes,
			Meta:              meta,
			Checksummer:       csum,
		},
		KeyBytes: keyBytes,
	}
	if err := writerBot.Send(zone.ctx, bot.Msg{Kind: bot.Write, Resp: resp, Payload: req}); err != nil {
		return FileLocation{}, ozerr.Wrap(ozerr.Channel, err, "sending write request")
	}
	m, err := resp.RecvTimeout(e.cfg.BotRequestTimeout.Duration)
	if err != nil {
		return FileLocation{}, err
	}
	if m.Kind == bot.Error {
		return FileLocation{}, m.Err
	}
	res, ok := m.Payload.(WriteResultMsg)
	if !ok {
		return FileLocation{}, ozerr.New(ozerr.Bug, "writer bot returned unexpected payload")
	}
	return res.Loc, nil
}

// Get fetches key's current value, reassembling it from its chunks if it
// was stored chunked, and returns a Responder carrying the decoded Value on
// success (spec.md §4.9, §4.11). A deleted or absent key yields an
// ozerr.Missing error on the Responder.
func (e *Engine) Get(key daticle.Value, override SchemesOverride) *bot.Responder {
	resp := bot.NewResponder(1)
	val, err := e.get(key, override)
	if err != nil {
		_ = resp.Send(bot.Msg{Kind: bot.Error, Err: err})
		return resp
	}
	_ = resp.Send(bot.Msg{Kind: bot.Value, Payload: val})
	return resp
}

func (e *Engine) get(key daticle.Value, override SchemesOverride) (daticle.Value, error) {
	zoneInd, keyBytes := e.route(key, override)
	csum := override.checksummer()

	storedBytes, err := e.readOne(zoneInd, keyBytes, csum)
	if err != nil {
		return daticle.Empty(), err
	}
	return e.resolveStoredBytes(storedBytes, override)
}

// resolveStoredBytes decodes one stored-value record, following a chunked
// bunch key's fan-out read (spec.md §4.9 step 4) or declining a tombstone,
// then reverses whatever encryption was applied at Put time.
func (e *Engine) resolveStoredBytes(storedBytes []byte, override SchemesOverride) (daticle.Value, error) {
	v, _, err := daticle.Decode(storedBytes)
	if err != nil {
		return daticle.Empty(), err
	}
	if v.Kind() == daticle.KindUsr && v.UsrCode() == tombstoneUsrCode {
		return daticle.Empty(), ozerr.New(ozerr.Missing, "key was deleted")
	}

	var payload []byte
	if bunch, ok := daticle.PartKeyFromValue(v); ok && bunch.Index == 0 {
		payload, err = e.joinChunks(bunch, override)
		if err != nil {
			return daticle.Empty(), err
		}
	} else {
		payload = v.AsBytes()
	}

	if override.Encryptor != nil {
		plain, err := override.Encryptor.Decrypt(payload)
		if err != nil {
			return daticle.Empty(), err
		}
		payload = plain
	}

	val, _, err := daticle.Decode(payload)
	if err != nil {
		return daticle.Empty(), err
	}
	return val, nil
}

func (e *Engine) joinChunks(bunch daticle.PartKey, override SchemesOverride) ([]byte, error) {
	parts := make([][]byte, bunch.NumParts)
	for i := uint64(1); i <= bunch.NumParts; i++ {
		partKey := daticle.PartKey{SetID: bunch.SetID, Index: i, DataLen: bunch.DataLen, NumParts: bunch.NumParts, PartSize: bunch.PartSize}
		partZoneInd, partKeyBytes := e.route(partKey.AsValue(), override)
		partStoredBytes, err := e.readOne(partZoneInd, partKeyBytes, override.checksummer())
		if err != nil {
			return nil, err
		}
		chunkVal, _, err := daticle.Decode(partStoredBytes)
		if err != nil {
			return nil, err
		}
		parts[i-1] = chunkVal.AsBytes()
	}
	return daticle.Join(bunch, parts)
}

func (e *Engine) readOne(zoneInd bot.ZoneInd, keyBytes []byte, csum Checksummer) ([]byte, error) {
	zone := e.zones[zoneInd]

	h := zone.Cache.Key(keyBytes)
	cacheBot := zone.CacheBots[zone.Cache.ShardIndex(h)]
	cacheResp := bot.NewResponder(1)
	if err := cacheBot.Send(zone.ctx, bot.Msg{Kind: bot.ReadCache, Resp: cacheResp, Payload: ReadCacheMsg{KeyBytes: keyBytes}}); err != nil {
		return nil, ozerr.Wrap(ozerr.Channel, err, "sending cache lookup")
	}
	cm, err := cacheResp.RecvTimeout(e.cfg.BotRequestTimeout.Duration)
	if err != nil {
		return nil, err
	}
	lookup, ok := cm.Payload.(ReadCacheResultMsg)
	if !ok || !lookup.Found {
		return nil, ozerr.New(ozerr.Missing, "key not found")
	}
	if lookup.Inline != nil {
		return lookup.Inline, nil
	}

	readerBot := zone.pickReaderBot(keyBytes)
	readResp := bot.NewResponder(1)
	if err := readerBot.Send(zone.ctx, bot.Msg{Kind: bot.Read, Resp: readResp, Payload: lookup.Entry.Loc}); err != nil {
		return nil, ozerr.Wrap(ozerr.Channel, err, "sending read request")
	}
	rm, err := readResp.RecvTimeout(e.cfg.BotRequestTimeout.Duration)
	if err != nil {
		return nil, err
	}
	if rm.Kind == bot.Error {
		return nil, rm.Err
	}
	valueBytes, ok := rm.Payload.([]byte)
	if !ok {
		return nil, ozerr.New(ozerr.Bug, "reader bot returned unexpected payload")
	}
	return valueBytes, nil
}

// Delete writes a tombstone over key's stored record (spec.md §4.2): a
// subsequent Get reports ozerr.Missing. The superseded record's region is
// scheduled for gc the same way an ordinary overwrite is.
func (e *Engine) Delete(key daticle.Value, userID uint64, override SchemesOverride) *bot.Responder {
	resp := bot.NewResponder(1)
	zoneInd, keyBytes := e.route(key, override)
	meta := NowMeta(userID)
	empty := daticle.Empty()
	tomb := daticle.Usr(tombstoneUsrCode, tombstoneLabel, &empty)
	storedBytes := daticle.Encode(tomb)
	if _, err := e.writeOne(zoneInd, keyBytes, storedBytes, meta, override.checksummer()); err != nil {
		_ = resp.Send(bot.Msg{Kind: bot.Error, Err: err})
		return resp
	}
	_ = resp.Send(bot.Msg{Kind: bot.Ok})
	return resp
}

// --- operator commands (spec.md §4.11) ---

// ActivateGC runs one gc pass per zone on its lowest-ratio-exceeding file,
// broadcasting to every zone's gc bot and aggregating the results.
func (e *Engine) ActivateGC() []GCResult {
	var results []GCResult
	for _, z := range e.zones {
		fileNum, ok := z.Files.GCCandidate(e.cfg.GCOldByteThresh)
		if !ok {
			continue
		}
		resp := bot.NewResponder(1)
		if err := z.GCBot.Send(z.ctx, bot.Msg{Kind: bot.GcControl, Resp: resp, Payload: GCControlMsg{FileNum: fileNum}}); err != nil {
			e.log.Warnw("gc control send failed", "zone", z.Ind, "error", err)
			continue
		}
		m, err := resp.RecvTimeout(e.cfg.BotRequestTimeout.Duration)
		if err != nil {
			e.log.Warnw("gc control timed out", "zone", z.Ind, "error", err)
			continue
		}
		if m.Kind == bot.Error {
			e.log.Warnw("gc pass failed", "zone", z.Ind, "error", m.Err)
			continue
		}
		if res, ok := m.Payload.(GCCompletedMsg); ok {
			results = append(results, res.Result)
		}
	}
	return results
}

// ClearCaches broadcasts ClearCache to one cache bot per zone (clearing that
// bot's whole ZoneCache is enough, since ZoneCache.Clear empties every
// shard, not just the receiving bot's own).
func (e *Engine) ClearCaches() {
	for _, z := range e.zones {
		if len(z.CacheBots) == 0 {
			continue
		}
		resp := bot.NewResponder(1)
		_ = z.CacheBots[0].Send(z.ctx, bot.Msg{Kind: bot.ClearCache, Resp: resp})
		_, _ = resp.RecvTimeout(e.cfg.BotRequestTimeout.Duration)
	}
}

// DumpCache returns every cache-bot shard's entries across every zone, the
// operator "dump cache" command.
func (e *Engine) DumpCache() map[bot.ZoneInd]map[int]map[string]CacheEntry {
	out := make(map[bot.ZoneInd]map[int]map[string]CacheEntry, len(e.zones))
	for _, z := range e.zones {
		zoneOut := make(map[int]map[string]CacheEntry, len(z.CacheBots))
		for ord, cb := range z.CacheBots {
			resp := bot.NewResponder(1)
			_ = cb.Send(z.ctx, bot.Msg{Kind: bot.DumpCacheRequest, Resp: resp, Payload: DumpCacheMsg{Ord: ord}})
			m, err := resp.RecvTimeout(e.cfg.BotRequestTimeout.Duration)
			if err != nil {
				continue
			}
			if res, ok := m.Payload.(DumpCacheResultMsg); ok {
				zoneOut[ord] = res.Entries
			}
		}
		out[z.Ind] = zoneOut
	}
	return out
}

// DumpFileStates returns every zone's file-state snapshot, the operator
// "dump file states" command.
func (e *Engine) DumpFileStates() map[bot.ZoneInd][]FileStateSnapshot {
	out := make(map[bot.ZoneInd][]FileStateSnapshot, len(e.zones))
	for _, z := range e.zones {
		resp := bot.NewResponder(1)
		_ = z.FileBot.Send(z.ctx, bot.Msg{Kind: bot.DumpFileStatesRequest, Resp: resp})
		m, err := resp.RecvTimeout(e.cfg.BotRequestTimeout.Duration)
		if err != nil {
			continue
		}
		if snap, ok := m.Payload.([]FileStateSnapshot); ok {
			out[z.Ind] = snap
		}
	}
	return out
}

// Ping broadcasts a Ping to every bot in every zone and reports how many
// replied before BotRequestTimeout elapsed, the operator "ping all bots"
// command (spec.md §4.11 tolerates an unresponsive bot rather than failing
// the whole broadcast).
func (e *Engine) Ping() (alive, total int) {
	var bots []*bot.Bot
	for _, z := range e.zones {
		bots = append(bots, z.CacheBots...)
		bots = append(bots, z.WriterBots...)
		bots = append(bots, z.ReaderBots...)
		bots = append(bots, z.FileBot, z.GCBot)
	}
	total = len(bots)
	resp := bot.NewResponder(total)
	for _, b := range bots {
		_ = b.Send(e.zones[0].ctx, bot.Msg{Kind: bot.Ping, Resp: resp})
	}
	replies, _ := resp.RecvNumber(total, e.cfg.BotRequestTimeout.Duration, 0, false)
	return len(replies), total
}

// ListFiles returns every data-file number known to each zone.
func (e *Engine) ListFiles() (map[bot.ZoneInd][]int64, error) {
	out := make(map[bot.ZoneInd][]int64, len(e.zones))
	for _, z := range e.zones {
		nums, err := z.Dir.ListFileNums()
		if err != nil {
			return nil, err
		}
		out[z.Ind] = nums
	}
	return out, nil
}

// ZoneDirs returns every zone's on-disk directory path.
func (e *Engine) ZoneDirs() map[bot.ZoneInd]string {
	out := make(map[bot.ZoneInd]string, len(e.zones))
	for _, z := range e.zones {
		out[z.Ind] = z.Dir.Path
	}
	return out
}

// ForceNewLiveFile rotates every zone onto a new live file immediately,
// regardless of whether DataFileMaxBytes has been reached (the operator
// "new live file" command, spec.md §4.11).
func (e *Engine) ForceNewLiveFile() error {
	for _, z := range e.zones {
		if _, err := z.Files.ForceRotate(); err != nil {
			return err
		}
	}
	return nil
}
