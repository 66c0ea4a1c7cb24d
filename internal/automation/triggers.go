package automation

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"

	"github.com/jedcn/baud/internal/logging"
)

// Trigger binds a compiled pattern to the script it fires.
type Trigger struct {
	Pattern *regexp.Regexp
	Script  string
	Comment string
}

// Match is one trigger that matched inbound text, with its capture
// groups.
type Match struct {
	Script   string
	Captures []string
}

// TriggerSet is the loaded pattern registry. Safe for concurrent use
// so the watcher can reload it while the inbound flow matches.
type TriggerSet struct {
	mu       sync.RWMutex
	triggers []Trigger
	path     string
	log      *logging.Logger
}

// NewTriggerSet creates an empty trigger set.
func NewTriggerSet(log *logging.Logger) *TriggerSet {
	if log == nil {
		log = logging.NullLogger
	}
	return &TriggerSet{log: log.WithComponent("triggers")}
}

// LoadFile replaces the current triggers with those parsed from path.
//
// File format, one trigger per line:
//
//	# Comments start with #
//	REGEX | SCRIPT_NAME | COMMENT
//
// Lines missing the separator or with an invalid regex are skipped
// with a warning. Returns the number of triggers loaded.
func (ts *TriggerSet) LoadFile(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening patterns file: %w", err)
	}
	defer f.Close()

	var triggers []Trigger
	scanner := bufio.NewScanner(f)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			ts.log.Warn("line %d missing separator, skipping: %s", lineNumber, line)
			continue
		}

		pattern := strings.TrimSpace(parts[0])
		script := strings.TrimSpace(parts[1])
		comment := ""
		if len(parts) > 2 {
			comment = strings.TrimSpace(parts[2])
		}

		if pattern == "" || script == "" {
			ts.log.Warn("line %d has empty pattern or script, skipping: %s", lineNumber, line)
			continue
		}

		re, err := regexp.Compile(pattern)
		if err != nil {
			ts.log.Warn("line %d has invalid regex %q: %v", lineNumber, pattern, err)
			continue
		}

		triggers = append(triggers, Trigger{Pattern: re, Script: script, Comment: comment})
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("reading patterns file: %w", err)
	}

	ts.mu.Lock()
	ts.triggers = triggers
	ts.path = path
	ts.mu.Unlock()

	return len(triggers), nil
}

// Reload re-reads the file the set was last loaded from. On failure
// the previous triggers stay in place.
func (ts *TriggerSet) Reload() error {
	ts.mu.RLock()
	path := ts.path
	ts.mu.RUnlock()

	if path == "" {
		return nil
	}
	_, err := ts.LoadFile(path)
	return err
}

// MatchText returns every trigger whose pattern matches text, in load
// order, with the pattern's capture groups.
func (ts *TriggerSet) MatchText(text string) []Match {
	ts.mu.RLock()
	defer ts.mu.RUnlock()

	var matches []Match
	for _, tr := range ts.triggers {
		groups := tr.Pattern.FindStringSubmatch(text)
		if groups == nil {
			continue
		}
		matches = append(matches, Match{Script: tr.Script, Captures: groups[1:]})
	}
	return matches
}

// Len returns the number of loaded triggers.
func (ts *TriggerSet) Len() int {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	return len(ts.triggers)
}
