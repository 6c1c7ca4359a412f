package credentials

import (
	"fmt"
	"os"
	"path/filepath"
)

func DefaultStorePath() string {
	xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
	if xdgConfigHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		xdgConfigHome = filepath.Join(homeDir, ".config")
	}
	return filepath.Join(xdgConfigHome, "studymate", "session.json")
}

func LegacyStorePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".studymate", "session.json")
}

// ResolveStorePath picks the XDG path unless only the legacy file exists.
func ResolveStorePath() string {
	path := DefaultStorePath()
	if FileExists(path) {
		return path
	}
	if legacy := LegacyStorePath(); legacy != "" && FileExists(legacy) {
		return legacy
	}
	return path
}

func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
