// Package main implements ozoned, the daemon that boots an ozone.Engine and
// serves its key-value store and operator commands over HTTP.
//
// ozoned generalizes the pattern the node/coordinator pair used for
// distributed shard storage into a single process: one Engine, sharded
// internally across zones and bot pools, fronted by a data API and an
// admin API.
//
// Architecture:
//
//	┌─────────────────────────────────────────┐
//	│                ozoned                    │
//	├─────────────────────────────────────────┤
//	│  HTTP API:                              │
//	│    /health           - Health check     │
//	│    /v1/data/{key}    - PUT/GET/DELETE   │
//	│    /v1/admin/*       - Operator commands│
//	├─────────────────────────────────────────┤
//	│  Components:                            │
//	│    ozone.Engine      - Storage engine   │
//	└─────────────────────────────────────────┘
//
// Configuration:
//   - OZONE_CONFIG: path to a TOML config file (optional)
//   - OZONE_LISTEN: HTTP listen address (default: ":7070")
//   - OZONE_ROOT_DIR, OZONE_GC_ENABLED: see ozone.ApplyEnv
//
// Example usage:
//
//	OZONE_ROOT_DIR=/var/lib/ozone OZONE_LISTEN=:7070 ./ozoned
//
//	curl -X PUT localhost:7070/v1/data/user:123 -d 'hello'
//	curl localhost:7070/v1/data/user:123
//	curl -X DELETE localhost:7070/v1/data/user:123
//	curl -X POST localhost:7070/v1/admin/gc
package main

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/dreamware/ozone/internal/bot"
	"github.com/dreamware/ozone/internal/daticle"
	"github.com/dreamware/ozone/internal/ozerr"
	"github.com/dreamware/ozone/internal/ozone"
)

// logFatal is a variable to allow mocking log.Fatal in tests.
var logFatal = log.Fatalf

// server bundles the running Engine and the logger its handlers use.
type server struct {
	engine *ozone.Engine
	log    *zap.SugaredLogger
}

// main loads configuration, boots the engine, and serves the HTTP API until
// a shutdown signal arrives.
//
// Exit codes:
//   - 0: Normal shutdown via signal
//   - 1: Failed to load config or start the engine
func main() {
	cfgPath := getenv("OZONE_CONFIG", "")
	listen := getenv("OZONE_LISTEN", ":7070")

	cfg, err := ozone.LoadTOML(cfgPath, ozone.Default())
	if err != nil {
		logFatal("loading config: %v", err)
	}
	cfg = ozone.ApplyEnv(cfg)

	zlog, err := zap.NewProduction()
	if err != nil {
		logFatal("building logger: %v", err)
	}
	defer zlog.Sync() //nolint:errcheck
	sugar := zlog.Sugar()

	engine, err := ozone.New(cfg, sugar)
	if err != nil {
		logFatal("starting engine: %v", err)
	}
	engine.Start(5 * time.Second)
	defer engine.Stop()

	srv := &server{engine: engine, log: sugar}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/v1/data/", srv.handleData)
	mux.HandleFunc("/v1/admin/", srv.handleAdmin)

	s := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		sugar.Infow("ozoned listening", "addr", listen, "num_zones", cfg.NumZones)
		if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logFatal("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Shutdown(ctx); err != nil {
		sugar.Warnw("server shutdown error", "error", err)
	}
	sugar.Info("ozoned stopped")
}

// handleData serves PUT/GET/DELETE on /v1/data/{key}, storing and returning
// request/response bodies as opaque bytes wrapped in a raw Daticle value.
//
// Response:
//   - 200 OK (GET): body is the stored bytes
//   - 204 No Content (PUT, DELETE): stored/deleted
//   - 404 Not Found (GET): key absent or deleted
//   - 400 Bad Request: missing key or unreadable body
//   - 500 Internal Server Error: engine error
func (s *server) handleData(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/v1/data/")
	if key == "" {
		http.Error(w, "missing key", http.StatusBadRequest)
		return
	}
	keyVal := daticle.Str(key)

	switch r.Method {
	case http.MethodGet:
		resp := s.engine.Get(keyVal, ozone.SchemesOverride{})
		m, err := resp.RecvTimeout(10 * time.Second)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if m.Kind == bot.Error {
			if ozerr.Is(m.Err, ozerr.Missing) {
				http.Error(w, "key not found", http.StatusNotFound)
				return
			}
			http.Error(w, m.Err.Error(), http.StatusInternalServerError)
			return
		}
		val, ok := m.Payload.(daticle.Value)
		if !ok {
			http.Error(w, "unexpected engine response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := w.Write(val.AsBytes()); err != nil {
			s.log.Warnw("error writing response", "error", err)
		}

	case http.MethodPut:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read body", http.StatusBadRequest)
			return
		}
		resp := s.engine.Put(keyVal, daticle.BU(body), 0, ozone.SchemesOverride{})
		m, err := resp.RecvTimeout(10 * time.Second)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if m.Kind == bot.Error {
			http.Error(w, m.Err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	case http.MethodDelete:
		resp := s.engine.Delete(keyVal, 0, ozone.SchemesOverride{})
		m, err := resp.RecvTimeout(10 * time.Second)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if m.Kind == bot.Error {
			http.Error(w, m.Err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleAdmin routes POST /v1/admin/{command}, one endpoint per operator
// command the engine exposes.
//
// Commands: gc, clear-caches, dump-cache, dump-file-states, state, ping,
// new-live-file.
func (s *server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	cmd := strings.TrimPrefix(r.URL.Path, "/v1/admin/")
	switch cmd {
	case "gc":
		results := s.engine.ActivateGC()
		writeJSON(w, gcResultsToDTO(results))

	case "clear-caches":
		s.engine.ClearCaches()
		w.WriteHeader(http.StatusNoContent)

	case "dump-cache":
		writeJSON(w, cacheDumpToDTO(s.engine.DumpCache()))

	case "dump-file-states":
		writeJSON(w, fileStatesToDTO(s.engine.DumpFileStates()))

	case "state":
		dirs := s.engine.ZoneDirs()
		files, err := s.engine.ListFiles()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		alive, total := s.engine.Ping()
		writeJSON(w, stateDTO{
			ZoneDirs:  dirsToDTO(dirs),
			FileNums:  filesToDTO(files),
			AliveBots: alive,
			TotalBots: total,
		})

	case "ping":
		alive, total := s.engine.Ping()
		writeJSON(w, pingDTO{Alive: alive, Total: total})

	case "new-live-file":
		if err := s.engine.ForceNewLiveFile(); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "unknown admin command", http.StatusNotFound)
	}
}

// --- JSON response shapes ---
//
// The ozone package's own types carry no json tags (they round-trip through
// Daticle and bot.Msg, not JSON), so the admin endpoints translate to small
// local DTOs instead of exporting encoding/json concerns into the engine.

type gcResultDTO struct {
	FileNum        int64 `json:"file_num"`
	OldDataSize    int64 `json:"old_data_size"`
	NewDataSize    int64 `json:"new_data_size"`
	BytesReclaimed int64 `json:"bytes_reclaimed"`
	IndexSizeDelta int64 `json:"index_size_delta"`
}

func gcResultsToDTO(results []ozone.GCResult) []gcResultDTO {
	out := make([]gcResultDTO, len(results))
	for i, r := range results {
		out[i] = gcResultDTO{
			FileNum:        r.FileNum,
			OldDataSize:    r.OldDataSize,
			NewDataSize:    r.NewDataSize,
			BytesReclaimed: r.BytesReclaimed,
			IndexSizeDelta: r.IndexSizeDelta,
		}
	}
	return out
}

func cacheDumpToDTO(dump map[bot.ZoneInd]map[int]map[string]ozone.CacheEntry) map[string]map[string]int {
	out := make(map[string]map[string]int, len(dump))
	for zoneInd, shards := range dump {
		zoneKey := strconv.Itoa(int(zoneInd))
		shardCounts := make(map[string]int, len(shards))
		for ord, entries := range shards {
			shardCounts[strconv.Itoa(ord)] = len(entries)
		}
		out[zoneKey] = shardCounts
	}
	return out
}

type fileStateDTO struct {
	FileNum   int64   `json:"file_num"`
	DataSize  int64   `json:"data_size"`
	IndexSize int64   `json:"index_size"`
	OldSum    int64   `json:"old_sum"`
	GCRatio   float64 `json:"gc_ratio"`
}

func fileStatesToDTO(states map[bot.ZoneInd][]ozone.FileStateSnapshot) map[string][]fileStateDTO {
	out := make(map[string][]fileStateDTO, len(states))
	for zoneInd, snaps := range states {
		dtos := make([]fileStateDTO, len(snaps))
		for i, snap := range snaps {
			dtos[i] = fileStateDTO{
				FileNum:   snap.FileNum,
				DataSize:  snap.DataSize,
				IndexSize: snap.IndexSize,
				OldSum:    snap.OldSum,
				GCRatio:   snap.GCRatio,
			}
		}
		out[strconv.Itoa(int(zoneInd))] = dtos
	}
	return out
}

func dirsToDTO(dirs map[bot.ZoneInd]string) map[string]string {
	out := make(map[string]string, len(dirs))
	for zoneInd, dir := range dirs {
		out[strconv.Itoa(int(zoneInd))] = dir
	}
	return out
}

func filesToDTO(files map[bot.ZoneInd][]int64) map[string][]int64 {
	out := make(map[string][]int64, len(files))
	for zoneInd, nums := range files {
		out[strconv.Itoa(int(zoneInd))] = nums
	}
	return out
}

type stateDTO struct {
	ZoneDirs  map[string]string  `json:"zone_dirs"`
	FileNums  map[string][]int64 `json:"file_nums"`
	AliveBots int                `json:"alive_bots"`
	TotalBots int                `json:"total_bots"`
}

type pingDTO struct {
	Alive int `json:"alive"`
	Total int `json:"total"`
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("error encoding response: %v", err)
	}
}

// getenv retrieves an environment variable with a default fallback value.
func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
