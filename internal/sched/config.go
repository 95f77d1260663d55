package sched

import (
	"os"

	yaml "github.com/goccy/go-yaml"
)

// Config mirrors config.yaml
type Config struct {
	TickMS      int    `yaml:"tick_ms"`      // wall-clock pacing period, demo/real-time mode only
	SliceTicks  int    `yaml:"slice_ticks"`  // global default slice length
	MaxThreads  int    `yaml:"max_threads"`  // thread table capacity
	PriorityMin int    `yaml:"priority_min"` // most urgent level
	PriorityMax int    `yaml:"priority_max"` // least urgent level
	EventBuffer int    `yaml:"event_buffer"` // status channel capacity
	TraceCSV    string `yaml:"trace_csv"`    // CSV trace path, empty = disabled
}

// If the config file is not found, we use default values
func defaultConfig() Config {
	return Config{
		TickMS:      5,
		SliceTicks:  10,
		MaxThreads:  64,
		PriorityMin: 0,
		PriorityMax: 15,
		EventBuffer: 256,
	}
}

// Load reads YAML and overrides defaults; empty path = defaults only
func Load(path string) Config {
	cfg := defaultConfig()

	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	_ = yaml.Unmarshal(data, &cfg)

	// sanity clamps
	if cfg.TickMS <= 0 {
		cfg.TickMS = 5
	}
	if cfg.SliceTicks <= 0 {
		cfg.SliceTicks = 10
	}
	if cfg.MaxThreads <= 0 {
		cfg.MaxThreads = 64
	}
	if cfg.PriorityMax < cfg.PriorityMin {
		cfg.PriorityMin, cfg.PriorityMax = 0, 15
	}
	if cfg.EventBuffer <= 0 {
		cfg.EventBuffer = 256
	}

	return cfg
}
