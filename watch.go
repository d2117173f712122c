package expconf

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WatchOptions configures file watching behavior.
type WatchOptions struct {
	// PollInterval between file stat checks (minimum 100ms)
	PollInterval time.Duration

	// Debounce duration to avoid rapid reloads
	Debounce time.Duration
}

// DefaultWatchOptions returns sensible defaults for file watching.
func DefaultWatchOptions() WatchOptions {
	return WatchOptions{
		PollInterval: DefaultPollInterval,
		Debounce:     DefaultDebounce,
	}
}

// Watcher polls a configuration file and re-applies it to a node when the
// file changes. One watcher serves one node/file pair.
type Watcher struct {
	node     *Node
	filePath string
	opts     WatchOptions
	cancel   context.CancelFunc
	events   chan string

	mu          sync.Mutex
	lastModTime time.Time
	lastSize    int64
}

// WatchFile starts watching path and re-applies it to the node on change.
// The watcher stops when ctx is cancelled or Stop is called. The initial
// file content is applied before the watcher starts.
func WatchFile(ctx context.Context, n *Node, path string, opts WatchOptions) (*Watcher, error) {
	if opts.PollInterval < MinPollInterval {
		opts.PollInterval = MinPollInterval
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	if err := n.FromFile(path); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	w := &Watcher{
		node:     n,
		filePath: path,
		opts:     opts,
		cancel:   cancel,
		events:   make(chan string, 1),
	}

	if info, err := os.Stat(path); err == nil {
		w.lastModTime = info.ModTime()
		w.lastSize = info.Size()
	}

	go w.watchLoop(ctx)
	return w, nil
}

// Events returns a channel that receives the file path after each
// successful reload. The channel is closed when the watcher stops.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Stop terminates the watch loop.
func (w *Watcher) Stop() {
	w.cancel()
}

func (w *Watcher) watchLoop(ctx context.Context) {
	defer close(w.events)

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	var pendingSince time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			info, err := os.Stat(w.filePath)
			if err != nil {
				// File may be mid-replace; keep polling.
				continue
			}

			w.mu.Lock()
			changed := !info.ModTime().Equal(w.lastModTime) || info.Size() != w.lastSize
			w.mu.Unlock()

			if changed && pendingSince.IsZero() {
				pendingSince = time.Now()
			}
			if pendingSince.IsZero() || time.Since(pendingSince) < w.opts.Debounce {
				continue
			}
			pendingSince = time.Time{}

			w.mu.Lock()
			w.lastModTime = info.ModTime()
			w.lastSize = info.Size()
			w.mu.Unlock()

			if err := w.node.FromFile(w.filePath); err != nil {
				logger().Error("failed to reload config file",
					zap.String("path", w.filePath),
					zap.Error(err),
				)
				continue
			}

			logger().Debug("config file reloaded", zap.String("path", w.filePath))

			// Non-blocking notify; a slow subscriber drops events.
			select {
			case w.events <- w.filePath:
			default:
			}
		}
	}
}
