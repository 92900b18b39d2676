// Package ozone implements the sharded, actor-based, content-addressed
// key-value storage engine: file layout and state (C7), the cache layer
// (C8), the writer and reader paths (C9/C10), init and garbage collection
// (C11), and the API facade (C12).
package ozone

import (
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"

	"github.com/dreamware/ozone/internal/daticle"
)

// ChunkConfig mirrors daticle.ChunkConfig in the shape the process-wide
// configuration file uses (TOML field names), converted to the codec's
// type at load time.
type ChunkConfig struct {
	ThresholdBytes uint64 `toml:"threshold_bytes"`
	ChunkSize      uint64 `toml:"chunk_size"`
	PadLast        bool   `toml:"pad_last"`
}

func (c ChunkConfig) toDaticle() daticle.ChunkConfig {
	return daticle.ChunkConfig{
		ThresholdBytes: int(c.ThresholdBytes),
		ChunkSize:      int(c.ChunkSize),
		PadLast:        c.PadLast,
	}
}

// Config is the process-wide configuration object (spec.md §6). Every
// field has a sensible default filled in by Default(); LoadTOML overlays a
// file on top of those defaults, and ApplyEnv overlays environment
// variables on top of that, mirroring the teacher's NODE_*/COORDINATOR_*
// environment-variable convention as the final override layer.
type Config struct {
	RootDir           string      `toml:"root_dir"`
	NumZones          int         `toml:"num_zones"`
	NumCBotsPerZone   int         `toml:"num_cbots_per_zone"`
	NumFBotsPerZone   int         `toml:"num_fbots_per_zone"`
	NumRBotsPerZone   int         `toml:"num_rbots_per_zone"`
	NumWBotsPerZone   int         `toml:"num_wbots_per_zone"`
	NumIGBotsPerZone  int         `toml:"num_igbots_per_zone"`
	DataFileMaxBytes  int64       `toml:"data_file_max_bytes"`
	Chunk             ChunkConfig `toml:"chunk_config"`
	GCOldByteThresh   float64     `toml:"gc_old_byte_threshold"`
	BotRequestTimeout Duration    `toml:"bot_request_timeout"`
	UserRequestTime   Duration    `toml:"user_request_timeout"`
	CacheLRUSize      int         `toml:"cache_lru_size"`
	GCEnabled         bool        `toml:"gc_enabled"`
}

// Duration wraps time.Duration so it can be decoded from a TOML string
// (e.g. "5s") rather than a raw integer of nanoseconds.
type Duration struct{ time.Duration }

// UnmarshalText implements encoding.TextUnmarshaler for BurntSushi/toml.
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return errors.Wrap(err, "parsing duration")
	}
	d.Duration = parsed
	return nil
}

// Default returns a Config with conservative defaults suitable for a
// single-process, single-disk deployment.
func Default() Config {
	return Config{
		RootDir:          "./ozone-data",
		NumZones:         4,
		NumCBotsPerZone:  4,
		NumFBotsPerZone:  2,
		NumRBotsPerZone:  4,
		NumWBotsPerZone:  2,
		NumIGBotsPerZone: 1,
		DataFileMaxBytes: 64 << 20,
		Chunk: ChunkConfig{
			ThresholdBytes: 1 << 16,
			ChunkSize:      1 << 15,
			PadLast:        false,
		},
		GCOldByteThresh:   0.5,
		BotRequestTimeout: Duration{5 * time.Second},
		UserRequestTime:   Duration{10 * time.Second},
		CacheLRUSize:      4096,
		GCEnabled:         true,
	}
}

// LoadTOML overlays the file at path onto base, returning the merged
// Config. A missing file is not an error; callers that require one present
// should check os.Stat themselves first.
func LoadTOML(path string, base Config) (Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return base, nil
	}
	if _, err := toml.DecodeFile(path, &base); err != nil {
		return Config{}, errors.Wrap(err, "decoding ozone config toml")
	}
	return base, nil
}

// ApplyEnv overlays recognised OZONE_* environment variables on top of cfg,
// the same override-layer convention the teacher applies to its
// NODE_*/COORDINATOR_* settings after loading static configuration.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("OZONE_ROOT_DIR"); v != "" {
		cfg.RootDir = v
	}
	if v := os.Getenv("OZONE_GC_ENABLED"); v != "" {
		cfg.GCEnabled = v != "0" && v != "false"
	}
	return cfg
}
