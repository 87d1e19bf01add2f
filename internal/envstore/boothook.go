package envstore

import (
	"fmt"
	"strings"

	"github.com/survon/provision/internal/fsutil"
)

// Marker lines bracketing the boot-selector block in the profile. The
// install removes any existing block before appending a fresh one, so
// repeated installs never stack.
const (
	hookBegin = "# >>> survon boot selector >>>"
	hookEnd   = "# <<< survon boot selector <<<"
)

// bootHookBlock builds the login-profile fragment. Only local console
// logins replace the shell with the boot selector; SSH sessions fall
// through to a plain shell.
func bootHookBlock(selectorCmd string) string {
	return strings.Join([]string{
		hookBegin,
		`if [ -z "$SSH_CONNECTION" ] && [ -z "$SSH_TTY" ] && [ -t 0 ]; then`,
		fmt.Sprintf("  exec %s", selectorCmd),
		"fi",
		hookEnd,
	}, "\n")
}

// InstallBootHook installs (or reinstalls) the boot-selector hook in the
// profile at path. selectorCmd is the command the login shell execs,
// typically "<installPath> boot".
func InstallBootHook(path, selectorCmd string) error {
	store := &Store{Path: path}
	lines, err := store.readLines()
	if err != nil {
		return err
	}

	lines = removeHookBlock(lines)
	lines = append(lines, strings.Split(bootHookBlock(selectorCmd), "\n")...)

	return store.writeLines(lines)
}

// RemoveBootHook deletes the hook block if present.
func RemoveBootHook(path string) error {
	store := &Store{Path: path}
	lines, err := store.readLines()
	if err != nil {
		return err
	}
	if !fsutil.Exists(path) {
		return nil
	}
	return store.writeLines(removeHookBlock(lines))
}

func removeHookBlock(lines []string) []string {
	kept := lines[:0]
	inBlock := false
	for _, line := range lines {
		switch strings.TrimSpace(line) {
		case hookBegin:
			inBlock = true
			continue
		case hookEnd:
			inBlock = false
			continue
		}
		if !inBlock {
			kept = append(kept, line)
		}
	}
	return kept
}
