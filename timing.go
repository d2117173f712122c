package expconf

import "time"

// Timing constants for the file watcher.
const (
	// MinPollInterval is the hard floor for file stat polling
	MinPollInterval = 100 * time.Millisecond
	// DefaultPollInterval is the standard file monitoring frequency
	DefaultPollInterval = time.Second
	// DefaultDebounce coalesces rapid file changes into one reload
	DefaultDebounce = 500 * time.Millisecond
)
