package internal

import (
	"os"
	"path/filepath"
)

var version = "dev"

func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".maibridge", "config.json")
}

// GetVersion returns the version string, set via -ldflags at release time.
func GetVersion() string {
	return version
}
