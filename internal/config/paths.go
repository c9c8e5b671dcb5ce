package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Paths struct {
	BaseDir    string
	DBPath     string
	SpoolDir   string
	ConfigFile string
}

func ResolvePaths(appSlug string) (Paths, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return Paths{}, fmt.Errorf("resolve user config dir: %w", err)
	}

	return pathsUnder(filepath.Join(configDir, appSlug))
}

func pathsUnder(baseDir string) (Paths, error) {
	spoolDir := filepath.Join(baseDir, "intents")

	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create app config dir: %w", err)
	}

	if err := os.MkdirAll(spoolDir, 0o755); err != nil {
		return Paths{}, fmt.Errorf("create intent spool dir: %w", err)
	}

	return Paths{
		BaseDir:    baseDir,
		DBPath:     filepath.Join(baseDir, "widget.db"),
		SpoolDir:   spoolDir,
		ConfigFile: filepath.Join(baseDir, "widget.yaml"),
	}, nil
}
