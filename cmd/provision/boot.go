package main

import (
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/survon/provision/internal/bootsel"
	"github.com/survon/provision/internal/monitoring"
)

// handleBoot runs the boot selector. The login-profile hook execs this
// in place of the login shell on local console logins.
func handleBoot(args []string) {
	layout := NewLayout(defaultHome())

	selector := &bootsel.Selector{Keys: os.Stdin}
	if selector.RemoteSession() {
		// Network sessions get a plain shell; the selector only ever
		// runs at the physical console.
		fmt.Println("Remote session; boot selector disabled.")
		return
	}

	decision := runCountdown(selector)
	monitoring.Debugf("boot: decision %s", decision)

	switch decision {
	case bootsel.Runtime:
		execProcess(layout.RuntimeBin)
	case bootsel.Menu:
		runMenu(os.Stdin, os.Stdout, layout)
	case bootsel.Maintenance:
		fmt.Println("Maintenance shell.")
		fmt.Printf("  Start Survon:   %s\n", layout.RuntimeBin)
		fmt.Printf("  Open the menu:  %s menu\n", layout.SelfInstall)
	}
}

// runCountdown puts the console into raw mode for single-keypress polling
// and restores it before any terminal action runs.
func runCountdown(selector *bootsel.Selector) bootsel.Decision {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		// No controlling terminal (e.g. piped input); the countdown
		// still works, it just reads line-buffered bytes.
		monitoring.Debugf("boot: raw mode unavailable: %v", err)
		return selector.Select()
	}
	defer term.Restore(fd, oldState)
	return selector.Select()
}

// execProcess replaces this process with the given binary. The selector
// never supervises what it launches.
func execProcess(path string, extraArgs ...string) {
	argv := append([]string{path}, extraArgs...)
	if err := syscall.Exec(path, argv, os.Environ()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start %s: %v\n", path, err)
		fmt.Fprintln(os.Stderr, "The runtime may not be provisioned yet; run: provision run")
		os.Exit(1)
	}
}
