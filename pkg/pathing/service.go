package pathing

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const appDirName = "telem"

// GetConfigDir returns the directory holding config.toml.
func GetConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appDirName)
	}
	return filepath.Join(homeDir(), ".config", appDirName)
}

func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.toml")
}

// GetDataDir follows XDG_DATA_HOME, falling back to ~/.local/share.
func GetDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, appDirName)
	}
	return filepath.Join(homeDir(), ".local", "share", appDirName)
}

func GetHistoryDbPath() string {
	return filepath.Join(GetDataDir(), "telem-history.db")
}

// Home directory token file, shared with older telem clients.
func GetDefaultTokenPath() string {
	return filepath.Join(homeDir(), ".telem_token")
}

// ExpandHome turns a leading ~ into the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		return homeDir()
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir(), path[2:])
	}
	return path
}

// EnsureParentDir creates the directory containing path.
func EnsureParentDir(path string, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}
	return nil
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
