// Package expand provides text expansions for outbound lines.
//
// Users define shortcuts in a line-oriented key=value file; when a
// completed line exactly matches a shortcut, the expansion is sent in
// its place. A line with no matching shortcut is sent unchanged.
//
// File format:
//
//	# Comments start with #
//	scapl1=sca pl 1
//	tp=teleport
//	inv=inventory
package expand

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jedcn/baud/internal/logging"
)

// Expander is an exact-match shortcut dictionary. It is safe for
// concurrent use so the watcher can reload it mid-session.
type Expander struct {
	mu      sync.RWMutex
	entries map[string]string
	path    string
	log     *logging.Logger
}

// New creates an empty expander.
func New(log *logging.Logger) *Expander {
	if log == nil {
		log = logging.NullLogger
	}
	return &Expander{
		entries: make(map[string]string),
		log:     log.WithComponent("expand"),
	}
}

// LoadFile replaces the current entries with those parsed from path.
// Malformed lines are skipped with a warning. Returns the number of
// entries loaded.
func (e *Expander) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening expansions file: %w", err)
	}
	defer f.Close()

	entries := make(map[string]string)
	scanner := bufio.NewScanner(f)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		eq := strings.Index(line, "=")
		if eq == -1 {
			e.log.Warn("line %d has no '=' separator, skipping: %s", lineNumber, line)
			continue
		}

		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		if key == "" {
			e.log.Warn("line %d has empty key, skipping: %s", lineNumber, line)
			continue
		}

		// Empty values are allowed: a key may expand to nothing.
		entries[key] = value
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reading expansions file: %w", err)
	}

	e.mu.Lock()
	e.entries = entries
	e.path = path
	e.mu.Unlock()

	return len(entries), nil
}

// Reload re-reads the file the expander was last loaded from. If no
// file has been loaded, Reload is a no-op. On failure the previous
// entries stay in place.
func (e *Expander) Reload() error {
	e.mu.RLock()
	path := e.path
	e.mu.RUnlock()

	if path == "" {
		return nil
	}
	_, err := e.LoadFile(path)
	return err
}

// Expand returns the expansion for text, or text unchanged if no entry
// exists. Pure lookup, no side effects.
func (e *Expander) Expand(text string) string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if expanded, ok := e.entries[text]; ok {
		return expanded
	}
	return text
}

// Has reports whether an expansion exists for text.
func (e *Expander) Has(text string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.entries[text]
	return ok
}

// Len returns the number of loaded expansions.
func (e *Expander) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.entries)
}

// Clear removes all loaded expansions.
func (e *Expander) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entries = make(map[string]string)
}
