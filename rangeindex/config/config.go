// Package config loads rangeindex field and coordinator tuning from an
// optional YAML file with environment-variable overrides, following the
// pack's own defaults-then-file-then-env precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the field-index defaults and coordinator tuning parameters.
type Config struct {
	// MainBits/Bits set the keyed store's B-tree branching degree for
	// numeric and string fields respectively (see Coordinator.btreeDegreeFor).
	MainBits int `yaml:"mainBits"`
	Bits     int `yaml:"bits"`

	// PoolSize/MainPool/MaxLeaves/LeafXtra/MainLeafXtra describe page-pool
	// and leaf-overflow sizing for the source's disk-paged B-tree. Kept for
	// config-format parity; google/btree's in-memory generic tree has no
	// page pool or leaf node to size, so these are diagnostic-only here.
	PoolSize     int `yaml:"poolSize"`
	MainPool     int `yaml:"mainPool"`
	MaxLeaves    int `yaml:"maxLeaves"`
	LeafXtra     int `yaml:"leafXtra"`
	MainLeafXtra int `yaml:"mainLeafXtra"`

	// Delimiter splits string-tag field values into independent keys.
	Delimiter byte `yaml:"-"`

	// MaxFields sizes the coordinator's field slot array.
	MaxFields int `yaml:"maxFields"`

	// MutationQueueCapacity bounds the coordinator's write pipeline.
	MutationQueueCapacity int `yaml:"mutationQueueCapacity"`
	// ReclaimQueueCapacity bounds the deferred-reclamation pipeline.
	ReclaimQueueCapacity int `yaml:"reclaimQueueCapacity"`
	// ReclaimGracePeriod is the minimum delay before a retired buffer is freed.
	ReclaimGracePeriod time.Duration `yaml:"reclaimGracePeriod"`
	// ReclaimMemoryLimitBytes caps bytes pending reclamation, 0 for unlimited.
	ReclaimMemoryLimitBytes int64 `yaml:"reclaimMemoryLimitBytes"`
	// ReclaimIOLimitBytesPerSec caps the reclamation worker's free rate, 0 for unlimited.
	ReclaimIOLimitBytesPerSec int64 `yaml:"reclaimIOLimitBytesPerSec"`

	// MaxNodeBytes caps a single Node's backing buffer size, 0 for
	// unlimited. A Node that would need to grow past this returns
	// ErrResourceExhausted instead of allocating.
	MaxNodeBytes int64 `yaml:"maxNodeBytes"`

	// DelimiterByte is the YAML-facing, single-byte-safe representation of
	// Delimiter (YAML strings don't round-trip a raw 0x01 byte cleanly).
	DelimiterByte int `yaml:"delimiter"`
}

// Default returns the field-index and coordinator defaults.
func Default() *Config {
	return &Config{
		MainBits:                  16,
		Bits:                      16,
		PoolSize:                  500,
		MainPool:                  500,
		MaxLeaves:                 1_000_000,
		LeafXtra:                  0,
		MainLeafXtra:              0,
		Delimiter:                 0x01,
		DelimiterByte:             0x01,
		MaxFields:                 256,
		MutationQueueCapacity:     4096,
		ReclaimQueueCapacity:      8192,
		ReclaimGracePeriod:        2 * time.Second,
		ReclaimMemoryLimitBytes:   0,
		ReclaimIOLimitBytesPerSec: 0,
		MaxNodeBytes:              0,
	}
}

// Load reads a YAML config file (if path is non-empty) over the defaults,
// then applies RANGEIDX_* environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	cfg.Delimiter = byte(cfg.DelimiterByte)
	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RANGEIDX_MAX_FIELDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxFields = n
		}
	}
	if v := os.Getenv("RANGEIDX_MUTATION_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MutationQueueCapacity = n
		}
	}
	if v := os.Getenv("RANGEIDX_RECLAIM_QUEUE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.ReclaimQueueCapacity = n
		}
	}
	if v := os.Getenv("RANGEIDX_RECLAIM_GRACE_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ReclaimGracePeriod = d
		}
	}
	if v := os.Getenv("RANGEIDX_RECLAIM_MEMORY_LIMIT_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ReclaimMemoryLimitBytes = n
		}
	}
	if v := os.Getenv("RANGEIDX_RECLAIM_IO_LIMIT_BYTES_PER_SEC"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ReclaimIOLimitBytesPerSec = n
		}
	}
	if v := os.Getenv("RANGEIDX_MAX_NODE_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.MaxNodeBytes = n
		}
	}
	if v := os.Getenv("RANGEIDX_DELIMITER"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 255 {
			cfg.Delimiter = byte(n)
		}
	}
}
