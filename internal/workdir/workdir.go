// Package workdir resolves where the consult CLI keeps local files: pending
// upload sagas, downloads and logs.
package workdir

import (
	"fmt"
	"os"
	"path/filepath"
)

// Dir is a resolved working directory.
type Dir string

// Resolve returns override when set, otherwise $HOME/Documents/Alkime/Consults.
func Resolve(override string) (Dir, error) {
	if override != "" {
		return Dir(override), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return Dir(filepath.Join(home, "Documents", "Alkime", "Consults")), nil
}

// Pending holds journaled upload sagas that still need a retry.
func (d Dir) Pending() string {
	return filepath.Join(string(d), "pending")
}

// Downloads is where fetched recordings are written by default.
func (d Dir) Downloads() string {
	return filepath.Join(string(d), "downloads")
}

// LogFile is where the TUI writes its logs while it owns the terminal.
func (d Dir) LogFile() string {
	return filepath.Join(string(d), "consult.log")
}

// Prep creates the directory tree.
func (d Dir) Prep() error {
	for _, p := range []string{string(d), d.Pending(), d.Downloads()} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			return fmt.Errorf("failed to create working directory %s: %w", p, err)
		}
	}

	return nil
}
