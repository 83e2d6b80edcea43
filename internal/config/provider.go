package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RuntimeConfig is the resolved per-run configuration shared by all
// components. Built once at startup; read-only afterwards.
type RuntimeConfig struct {
	// WorkDir is the directory abiscan was invoked from
	WorkDir string

	// OutputDir is the root of the scan result tree
	OutputDir string

	// Chain is the default chain name or id used when --chain is absent
	Chain string

	// ChainsFile points to an optional chains.toml with registry overrides
	ChainsFile string

	// RegistryURL overrides the Sourcify repository base URL
	RegistryURL string

	// ExplorerRPS caps client-side explorer request throughput
	ExplorerRPS float64

	Debug          bool
	JSON           bool
	NonInteractive bool
	Timeout        time.Duration
}

// Provider creates a RuntimeConfig for Wire dependency injection
func Provider(v *viper.Viper) (*RuntimeConfig, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve working directory: %w", err)
	}

	cfg := &RuntimeConfig{
		WorkDir:        workDir,
		OutputDir:      v.GetString("output"),
		Chain:          v.GetString("chain"),
		ChainsFile:     v.GetString("chains_file"),
		RegistryURL:    v.GetString("registry_url"),
		ExplorerRPS:    v.GetFloat64("explorer_rps"),
		Debug:          v.GetBool("debug"),
		JSON:           v.GetBool("json"),
		NonInteractive: v.GetBool("non_interactive"),
		Timeout:        v.GetDuration("timeout"),
	}

	if !filepath.IsAbs(cfg.OutputDir) {
		cfg.OutputDir = filepath.Join(workDir, cfg.OutputDir)
	}
	if cfg.ChainsFile == "" {
		cfg.ChainsFile = defaultChainsFile(workDir)
	}

	return cfg, nil
}

// defaultChainsFile prefers a chains.toml in the working directory, then
// the XDG config location. Missing files are fine; the registry falls back
// to its built-in chain table.
func defaultChainsFile(workDir string) string {
	local := filepath.Join(workDir, "chains.toml")
	if _, err := os.Stat(local); err == nil {
		return local
	}

	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return local
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "abiscan", "chains.toml")
}

// SetupViper creates and configures a viper instance
func SetupViper(workDir string) *viper.Viper {
	v := viper.New()

	// Optional config file
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(filepath.Join(workDir, ".abiscan"))

	// Environment variables
	v.SetEnvPrefix("ABISCAN")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	// Defaults
	v.SetDefault("chain", "mainnet")
	v.SetDefault("output", "scans")
	v.SetDefault("timeout", "2m")
	v.SetDefault("explorer_rps", 5.0)
	v.SetDefault("debug", false)
	v.SetDefault("json", false)
	v.SetDefault("non_interactive", false)

	// Config file is optional
	_ = v.ReadInConfig()

	return v
}
