package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used for config lookup paths and env var names
	DefaultAppName        = "mrg"
	DefaultAppCMDShortCut = "mrg"
	DefaultConfigPath     = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultCacheDir       = filepath.Join(DefaultConfigPath, ".cache")
	DefaultAnnPath        = filepath.Join("data", "annotation.json")

	// Default store settings
	DefaultStoreURL = "file:" + filepath.Join(DefaultConfigPath, "mrg.db")

	// Default dataset settings
	DefaultDatasetName = "iu_xray"
	DefaultThreshold   = 3
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}

// NopLogger returns a logger that discards everything, used by tests and library callers
func NopLogger() zerolog.Logger {
	return zerolog.Nop()
}
