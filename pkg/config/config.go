// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/agentstep/pipeline/pkg/perr"
)

// DefaultConfigFileName is the base name (without extension) steppipe looks
// for alongside DataDir, the working directory, and /etc/steppipe/.
const DefaultConfigFileName = "steppipe"

// Config is the full layered configuration for a pipeline run. Priority:
// STEPPIPE_* environment variables > config file > defaults.
type Config struct {
	Detection DetectionConfig `mapstructure:"detection"`
	Buffer    BufferConfig    `mapstructure:"buffer"`
	Control   ControlConfig   `mapstructure:"control"`
	History   HistoryConfig   `mapstructure:"history"`
}

// DetectionConfig configures the Pattern library and Detector.
type DetectionConfig struct {
	Strategy            string  `mapstructure:"strategy"`             // pattern_based | heuristic | hybrid
	Patterns            string  `mapstructure:"patterns"`             // "default" or a path to a pattern file
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"` // default 0.7
	MaxHistory          int     `mapstructure:"max_history"`          // default 10

	// HotReloadDir, if non-empty, watches the directory for changes to the
	// loaded pattern file and reloads the Library in place. Requires
	// Patterns to name a file rather than "default".
	HotReloadDir        string `mapstructure:"hot_reload_dir"`
	HotReloadDebounceMS int    `mapstructure:"hot_reload_debounce_ms"` // default 500
}

// BufferConfig configures the Buffer's timers and resource ceilings.
type BufferConfig struct {
	BufferTimeoutMS int `mapstructure:"buffer_timeout_ms"` // default 5000
	MaxBufferSize   int `mapstructure:"max_buffer_size"`   // default 100
	MaxMemoryMB     int `mapstructure:"max_memory_mb"`     // default 50
}

// ControlConfig configures the Controller's mode and review timeout.
type ControlConfig struct {
	Mode              string `mapstructure:"mode"` // automatic | manual | review_required
	PauseBetweenSteps bool   `mapstructure:"pause_between_steps"`
	ControlTimeoutMS  int    `mapstructure:"control_timeout_ms"` // default 30000
}

// HistoryConfig configures History's bounds and persistence.
type HistoryConfig struct {
	MaxStepHistory         int    `mapstructure:"max_step_history"`         // default 100
	AutoCheckpointInterval int    `mapstructure:"auto_checkpoint_interval"` // 0 disables
	PreserveCheckpoints    bool   `mapstructure:"preserve_checkpoints"`
	EnableRecovery         bool   `mapstructure:"enable_recovery"`
	PersistenceAdapter     string `mapstructure:"persistence_adapter"` // "none" | "file" | "sqlite"
	PersistenceConfig      string `mapstructure:"persistence_config"`  // adapter-specific path/DSN
}

// Load builds a Config from cfgFile (if non-empty), DataDir/steppipe.yaml,
// the working directory, and /etc/steppipe/, layered under STEPPIPE_*
// environment variables and the defaults set below.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(DataDir())
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/steppipe/")
		v.SetConfigName(DefaultConfigFileName)
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if !os.IsNotExist(err) {
				return Config{}, fmt.Errorf("config: read %s: %w", v.ConfigFileUsed(), err)
			}
		}
	}

	v.SetEnvPrefix("STEPPIPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, cfg.Validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("detection.strategy", "pattern_based")
	v.SetDefault("detection.patterns", "default")
	v.SetDefault("detection.confidence_threshold", 0.7)
	v.SetDefault("detection.max_history", 10)
	v.SetDefault("detection.hot_reload_dir", "")
	v.SetDefault("detection.hot_reload_debounce_ms", 500)

	v.SetDefault("buffer.buffer_timeout_ms", 5000)
	v.SetDefault("buffer.max_buffer_size", 100)
	v.SetDefault("buffer.max_memory_mb", 50)

	v.SetDefault("control.mode", "automatic")
	v.SetDefault("control.pause_between_steps", false)
	v.SetDefault("control.control_timeout_ms", 30000)

	v.SetDefault("history.max_step_history", 100)
	v.SetDefault("history.auto_checkpoint_interval", 0)
	v.SetDefault("history.preserve_checkpoints", true)
	v.SetDefault("history.enable_recovery", true)
	v.SetDefault("history.persistence_adapter", "none")
}

// Validate checks the subset of options that would otherwise fail
// obscurely deep inside a component constructor, surfacing them as a single
// config_error before any component is built.
func (c Config) Validate() error {
	switch c.Detection.Strategy {
	case "pattern_based", "heuristic", "hybrid":
	default:
		return perr.NewConfigError("detection.strategy %q is not one of pattern_based, heuristic, hybrid", c.Detection.Strategy)
	}
	if c.Detection.ConfidenceThreshold < 0 || c.Detection.ConfidenceThreshold > 1 {
		return perr.NewConfigError("detection.confidence_threshold %v out of [0,1]", c.Detection.ConfidenceThreshold)
	}
	switch c.Control.Mode {
	case "automatic", "manual", "review_required":
	default:
		return perr.NewConfigError("control.mode %q is not one of automatic, manual, review_required", c.Control.Mode)
	}
	switch c.History.PersistenceAdapter {
	case "none", "file", "sqlite":
	default:
		return perr.NewConfigError("history.persistence_adapter %q is not one of none, file, sqlite", c.History.PersistenceAdapter)
	}
	return nil
}
