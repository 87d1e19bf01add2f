// Package envstore manages the runtime's persisted variables: a sequence
// of `export KEY="VALUE"` lines in the operator's shell profile, which
// the runtime binary reads at its own startup.
//
// Writes follow remove-then-append semantics so a key appears at most
// once after any write; re-applying a write is idempotent, never
// additive.
package envstore

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/survon/provision/internal/fsutil"
)

// Entry is one persisted key/value pair.
type Entry struct {
	Key   string
	Value string
}

// Store reads and writes the persisted variables in a profile file.
type Store struct {
	// Path is the profile file, created on first write if absent.
	Path string
}

// exportPrefix returns the line prefix that defines key.
func exportPrefix(key string) string {
	return fmt.Sprintf("export %s=", key)
}

// Set persists key=value, replacing any previous definition of key. The
// value is written quoted; keys are case-sensitive and values opaque.
func (s *Store) Set(key, value string) error {
	if key == "" {
		return fmt.Errorf("empty variable name")
	}

	lines, err := s.readLines()
	if err != nil {
		return err
	}

	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), exportPrefix(key)) {
			continue
		}
		kept = append(kept, line)
	}
	kept = append(kept, fmt.Sprintf("export %s=%q", key, value))

	return s.writeLines(kept)
}

// Get returns the current value of key, if defined.
func (s *Store) Get(key string) (string, bool, error) {
	entries, err := s.All()
	if err != nil {
		return "", false, err
	}
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true, nil
		}
	}
	return "", false, nil
}

// All returns every persisted variable in file order.
func (s *Store) All() ([]Entry, error) {
	lines, err := s.readLines()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "export ") {
			continue
		}
		rest := strings.TrimPrefix(trimmed, "export ")
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			continue
		}
		key := rest[:eq]
		entries = append(entries, Entry{Key: key, Value: unquote(rest[eq+1:])})
	}
	return entries, nil
}

// unquote inverts the %q encoding Set writes. Lines from other tools may
// use bare or partially quoted values, so a failed unquote falls back to
// trimming the surrounding quotes.
func unquote(value string) string {
	if v, err := strconv.Unquote(value); err == nil {
		return v
	}
	return strings.Trim(value, `"`)
}

func (s *Store) readLines() ([]string, error) {
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return nil, nil
	}
	return strings.Split(text, "\n"), nil
}

func (s *Store) writeLines(lines []string) error {
	content := strings.Join(lines, "\n") + "\n"
	return fsutil.WriteFileAtomic(s.Path, []byte(content), 0644)
}
