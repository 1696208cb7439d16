package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths are the on-disk locations used at runtime.
type Paths struct {
	BaseDir  string
	DBPath   string
	ImageDir string
}

// ResolvePaths creates the data, database and image directories for cfg.
func ResolvePaths(cfg Config) (Paths, error) {
	imageDir, err := filepath.Abs(cfg.ImageDir)
	if err != nil {
		return Paths{}, fmt.Errorf("resolve image dir: %w", err)
	}

	dirs := []string{cfg.DataDir, filepath.Dir(cfg.DBPath), imageDir}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil { // #nosec G301 - App data directory needs standard permissions
			return Paths{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}

	return Paths{
		BaseDir:  cfg.DataDir,
		DBPath:   cfg.DBPath,
		ImageDir: imageDir,
	}, nil
}
