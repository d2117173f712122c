package expconf

import "errors"

// Sentinel errors for the loading layer.
var (
	// ErrConfigNotFound is returned when the configuration file does not
	// exist. Callers usually treat this as non-fatal and run on defaults.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrCLIParse wraps command-line override parsing failures.
	ErrCLIParse = errors.New("failed to parse command-line overrides")

	// ErrFileSize is returned when a configuration file exceeds
	// MaxConfigFileSize.
	ErrFileSize = errors.New("config file exceeds maximum size")
)

// MaxConfigFileSize bounds configuration file reads.
const MaxConfigFileSize = 10 << 20 // 10 MiB
