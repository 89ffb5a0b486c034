// Package main is the suisen CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"

	"github.com/hyperjump/suisen/internal/config"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/suisen/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

// loadConfig resolves the configuration. When path is the default, config.yaml in the current
// directory wins if it exists (for development); when neither exists the built-in defaults are
// used. Environment overrides and .env files apply in every case.
// Returns the config and the path that was actually loaded ("" for defaults).
func loadConfig(path string) (*config.Config, string, error) {
	resolved := path
	if path == defaultConfigPath {
		resolved = ""
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, err := os.Stat(fallback); err == nil {
				resolved = fallback
			}
		}
		if resolved == "" {
			if _, err := os.Stat(defaultConfigPath); err == nil {
				resolved = defaultConfigPath
			}
		}
	}
	cfg, err := config.Resolve(resolved)
	if err != nil {
		return nil, "", err
	}
	return cfg, resolved, nil
}
