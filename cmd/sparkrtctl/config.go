package main

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"sparkrt/kernel"
)

// ctlConfig is sparkrtctl's own on-disk configuration, decoded from TOML the
// way the teacher's cmd/surge decodes surge.toml: a plain struct with
// per-field toml tags. The decoder's toml.MetaData is not consulted; a field
// left at zero means "use the kernel default" (see kernelConfig).
type ctlConfig struct {
	Tick  tickConfig  `toml:"tick"`
	Stack stackConfig `toml:"stack"`
	Run   runConfig   `toml:"run"`
}

type tickConfig struct {
	HzOverride uint32 `toml:"hz"`
}

type stackConfig struct {
	DefaultBytes int `toml:"default_bytes"`
	MinBytes     int `toml:"min_bytes"`
	MainBytes    int `toml:"main_bytes"`
}

type runConfig struct {
	MaxThreads  int  `toml:"max_threads"`
	EnableStats bool `toml:"enable_stats"`
}

func loadCtlConfig(path string) (ctlConfig, error) {
	var cfg ctlConfig
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return ctlConfig{}, fmt.Errorf("%s: failed to parse TOML: %w", path, err)
	}
	return cfg, nil
}

// kernelConfig maps the on-disk config onto kernel.Config, falling back to
// kernel.DefaultConfig for any field left at zero.
func (c ctlConfig) kernelConfig() kernel.Config {
	cfg := kernel.DefaultConfig()
	if c.Tick.HzOverride != 0 {
		cfg.TickHz = c.Tick.HzOverride
	}
	if c.Stack.DefaultBytes != 0 {
		cfg.DefaultStackBytes = c.Stack.DefaultBytes
	}
	if c.Stack.MinBytes != 0 {
		cfg.MinStackBytes = c.Stack.MinBytes
	}
	if c.Stack.MainBytes != 0 {
		cfg.MainStackBytes = c.Stack.MainBytes
	}
	if c.Run.MaxThreads != 0 {
		cfg.MaxThreads = c.Run.MaxThreads
	}
	if c.Run.EnableStats {
		cfg.EnableStats = true
	}
	return cfg
}
