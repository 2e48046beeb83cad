// Package config loads padlock's on-disk defaults: which container format
// to encrypt with, whether strict path policy is active, the KDF cost
// parameters new ignition keys are sealed with, where the audit log lives,
// and which Age adapter strategy to prefer.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/oodx/padlock/internal/ageadapter"
	"github.com/oodx/padlock/internal/ignition"
	"github.com/oodx/padlock/internal/platform"
	"github.com/oodx/padlock/internal/validator"
)

// Config is the top-level document.
type Config struct {
	DefaultFormat     string   `yaml:"default_format,omitempty"` // "binary" | "armor"
	StrictMode        bool     `yaml:"strict_mode,omitempty"`
	AllowedExtensions []string `yaml:"allowed_extensions,omitempty"`
	KDF               KDF      `yaml:"kdf,omitempty"`
	AuditLogPath      string   `yaml:"audit_log_path,omitempty"`
	AdapterStrategy   string   `yaml:"adapter_strategy,omitempty"` // "auto" | "library" | "subprocess"
	AgeBinary         string   `yaml:"age_binary,omitempty"`
}

// KDF pins the Argon2id cost parameters new ignition keys are sealed with.
// Pinning these in config, rather than hardcoding them in the ignition
// package, lets an operator raise the cost on more capable hardware without
// a code change; the chosen parameters are always recorded in the
// resulting ignition key's own KDF hash, so existing keys are unaffected.
type KDF struct {
	MemoryKiB   uint32 `yaml:"memory_kib,omitempty"`
	Iterations  uint32 `yaml:"iterations,omitempty"`
	Parallelism uint8  `yaml:"parallelism,omitempty"`
}

// Default returns padlock's built-in defaults, used whenever a config file
// is absent or omits a field.
func Default() Config {
	return Config{
		DefaultFormat: "binary",
		StrictMode:    false,
		KDF: KDF{
			MemoryKiB:   64 * 1024,
			Iterations:  1,
			Parallelism: 2,
		},
		AuditLogPath:    defaultAuditLogPath(),
		AdapterStrategy: "auto",
		AgeBinary:       "age",
	}
}

func defaultAuditLogPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".padlock", "audit.log")
	}
	return filepath.Join(home, ".local", "share", "padlock", "audit.log")
}

// Load reads and parses a config file, filling any field the file omits
// from Default(). A missing file is not an error: it yields Default()
// unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}

	var onDisk Config
	if err := yaml.Unmarshal(data, &onDisk); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if onDisk.DefaultFormat != "" {
		cfg.DefaultFormat = onDisk.DefaultFormat
	}
	cfg.StrictMode = onDisk.StrictMode
	if onDisk.AllowedExtensions != nil {
		cfg.AllowedExtensions = onDisk.AllowedExtensions
	}
	if onDisk.KDF.MemoryKiB != 0 {
		cfg.KDF.MemoryKiB = onDisk.KDF.MemoryKiB
	}
	if onDisk.KDF.Iterations != 0 {
		cfg.KDF.Iterations = onDisk.KDF.Iterations
	}
	if onDisk.KDF.Parallelism != 0 {
		cfg.KDF.Parallelism = onDisk.KDF.Parallelism
	}
	if onDisk.AuditLogPath != "" {
		cfg.AuditLogPath = platform.ExpandPath(onDisk.AuditLogPath)
	}
	if onDisk.AdapterStrategy != "" {
		cfg.AdapterStrategy = onDisk.AdapterStrategy
	}
	if onDisk.AgeBinary != "" {
		cfg.AgeBinary = onDisk.AgeBinary
	}

	return cfg, nil
}

// Format resolves the configured default container format.
func (c Config) Format() ageadapter.Format {
	if c.DefaultFormat == "armor" {
		return ageadapter.AsciiArmor
	}
	return ageadapter.Binary
}

// Strategy resolves the configured Age adapter strategy.
func (c Config) Strategy() ageadapter.Strategy {
	switch c.AdapterStrategy {
	case "library":
		return ageadapter.StrategyLibrary
	case "subprocess":
		return ageadapter.StrategySubprocess
	default:
		return ageadapter.StrategyAuto
	}
}

// Factory builds the Age adapter factory described by this config.
func (c Config) Factory() ageadapter.Factory {
	return ageadapter.Factory{Strategy: c.Strategy(), AgeBinary: c.AgeBinary}
}

// Policy builds the path-validation policy described by this config.
func (c Config) Policy() validator.Policy {
	allowed := make(map[string]bool, len(c.AllowedExtensions))
	for _, ext := range c.AllowedExtensions {
		allowed[ext] = true
	}
	return validator.Policy{StrictMode: c.StrictMode, AllowedExtension: allowed}
}

// IgnitionCost translates the configured KDF cost parameters into the form
// ignition.Create expects, so a new ignition key is always sealed with
// whatever this config pins rather than a package-level default.
func (c Config) IgnitionCost() ignition.Cost {
	return ignition.Cost{
		MemoryKiB:   c.KDF.MemoryKiB,
		Iterations:  c.KDF.Iterations,
		Parallelism: c.KDF.Parallelism,
	}
}
