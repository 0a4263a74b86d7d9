package main

import (
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// daemonConfig holds wispd's resolved settings. It is intentionally a
// plain struct: only this cmd package depends on viper, so the core
// packages have no config-parsing dependency (SPEC_FULL.md §0).
type daemonConfig struct {
	SocketPath string
	LogLevel   string
}

// defaultSocketPath implements spec.md §6.4's resolution order:
// $XDG_RUNTIME_DIR/wisp.sock, falling back to ~/.wisp/wisp.sock.
func defaultSocketPath() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return filepath.Join(dir, "wisp.sock")
	}
	home, err := homedir.Dir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".wisp", "wisp.sock")
}

// loadConfig resolves v's bound flags/env/file values into a daemonConfig,
// falling back to defaultSocketPath when nothing else set "socket".
func loadConfig(v *viper.Viper) daemonConfig {
	v.SetEnvPrefix("WISP")
	v.AutomaticEnv()
	v.SetDefault("socket", defaultSocketPath())
	v.SetDefault("log_level", "info")

	return daemonConfig{
		SocketPath: v.GetString("socket"),
		LogLevel:   v.GetString("log_level"),
	}
}
