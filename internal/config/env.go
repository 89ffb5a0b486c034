package config

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/hyperjump/suisen/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. SUISEN_SERVER_PORT.
const EnvPrefix = "SUISEN"

// LoadEnvFiles loads .env files into the process environment. Variables already set win.
// Missing files are skipped; with no arguments ".env" in the working directory is tried.
func LoadEnvFiles(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return errors.Wrap(err, errors.CodeConfigLoadFailure, "failed to load env file", errors.Field("path", p))
		}
	}
	return nil
}

// ApplyEnv overrides cfg from SUISEN_<GROUP>_<KEY> environment variables. Fields with an
// explicit envconfig tag are also read without the prefix, so OPENAI_API_KEY works as is.
func ApplyEnv(cfg *Config) error {
	var top struct {
		Debug    *bool
		LogLevel string `split_words:"true"`
	}
	groups := []struct {
		prefix string
		spec   any
	}{
		{EnvPrefix, &top},
		{EnvPrefix + "_SERVER", &cfg.Server},
		{EnvPrefix + "_STORAGE", &cfg.Storage},
		{EnvPrefix + "_EMBEDDING", &cfg.Embedding},
		{EnvPrefix + "_INDEX", &cfg.Index},
		{EnvPrefix + "_RECOMMEND", &cfg.Recommend},
		{EnvPrefix + "_CATALOG", &cfg.Catalog},
	}
	for _, g := range groups {
		if err := envconfig.Process(g.prefix, g.spec); err != nil {
			return errors.Wrap(err, errors.CodeConfigInvalidValue, "invalid environment override", errors.Field("prefix", g.prefix))
		}
	}
	if top.Debug != nil {
		cfg.Debug = *top.Debug
	}
	if top.LogLevel != "" {
		cfg.LogLevel = top.LogLevel
	}
	return nil
}

// Resolve is the full loading sequence used by the binary: .env files, the YAML file at path
// (defaults only when path is empty), environment overrides, then validation.
func Resolve(path string, envFiles ...string) (*Config, error) {
	if err := LoadEnvFiles(envFiles...); err != nil {
		return nil, err
	}
	var cfg *Config
	if path == "" {
		cfg = Default()
	} else {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
