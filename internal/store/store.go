package store

import (
	"fmt"
	"os"
	"strings"
)

const (
	DefaultDBFile = "local.db"
	DefaultDBURL  = "file:" + DefaultDBFile
)

// CheckExists verifies if the datastore exists at the given path.
// Returns true if the store exists, false otherwise.
func CheckExists(dbPath string) (bool, error) {
	info, err := os.Stat(dbPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check store existence: %w", err)
	}
	if info.IsDir() {
		return false, fmt.Errorf("datastore path is a directory, expected file: %s", dbPath)
	}
	return true, nil
}

// ParseFileURL turns a SQLite file URL such as "file:local.db" or
// "file:///var/lib/app.db?mode=rwc" into a filesystem path. Plain paths are
// returned unchanged.
func ParseFileURL(url string) (string, error) {
	path := strings.TrimSpace(url)
	switch {
	case strings.HasPrefix(path, "file://"):
		path = strings.TrimPrefix(path, "file://")
	case strings.HasPrefix(path, "file:"):
		path = strings.TrimPrefix(path, "file:")
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "", fmt.Errorf("database url %q has no file path", url)
	}
	if path == ":memory:" {
		return "", fmt.Errorf("in-memory databases cannot be migrated from the command line")
	}
	return path, nil
}
