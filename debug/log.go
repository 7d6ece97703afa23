// Package debug is an opt-in category-tagged file logger. The playback core
// never writes to stdout; when enabled, diagnostics land in
// ~/.config/tactus/debug.log so they can be tailed next to a running TUI.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	file    *os.File
	mu      sync.Mutex
	enabled bool
)

// Path returns the debug log location.
func Path() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "tactus", "debug.log")
}

// Enable starts debug logging, truncating any previous log.
func Enable() error {
	mu.Lock()
	defer mu.Unlock()

	if enabled {
		return nil
	}

	path := Path()
	os.MkdirAll(filepath.Dir(path), 0755)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}

	file = f
	enabled = true
	write("debug", "=== debug logging started ===")
	return nil
}

// Disable stops debug logging.
func Disable() {
	mu.Lock()
	defer mu.Unlock()

	if file != nil {
		file.Close()
		file = nil
	}
	enabled = false
}

// Log writes one message under a category.
func Log(category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	write(category, fmt.Sprintf(format, args...))
}

// write assumes mu is held.
func write(category, msg string) {
	ts := time.Now().Format("15:04:05.000")
	fmt.Fprintf(file, "[%s] %-8s %s\n", ts, category, msg)
	file.Sync() // flush immediately so logs survive a crash
}

var counters = make(map[string]int)

// LogEvery logs only every nth call per category+format, for hot-path events
// like the tick loop.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	defer mu.Unlock()
	if !enabled {
		return
	}
	key := category + format
	counters[key]++
	count := counters[key]
	if count%n == 0 {
		write(category, fmt.Sprintf(format+" (count=%d)", append(args, count)...))
	}
}
