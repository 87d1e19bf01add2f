// Package bootsel decides what the appliance does at console login:
// launch the runtime, open the interactive menu, or drop to a
// maintenance shell.
//
// The machine runs once per login. From the initial countdown exactly one
// transition occurs: a matched keypress resolves to Menu or Maintenance,
// anything else (including countdown expiry) resolves to Runtime. Network
// sessions bypass the selector entirely so remote administration always
// gets a plain shell.
package bootsel

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/survon/provision/internal/monitoring"
)

// Decision is the terminal outcome of one countdown.
type Decision int

const (
	// Runtime hands off to the runtime binary, replacing the process.
	Runtime Decision = iota
	// Menu hands off to the interactive menu shell.
	Menu
	// Maintenance exits to a plain shell with operator guidance.
	Maintenance
)

func (d Decision) String() string {
	switch d {
	case Runtime:
		return "runtime"
	case Menu:
		return "menu"
	case Maintenance:
		return "maintenance"
	default:
		return fmt.Sprintf("Decision(%d)", int(d))
	}
}

// Default countdown tuning.
const (
	DefaultBudget = 5 * time.Second
	DefaultTick   = 250 * time.Millisecond
)

// Selector runs the countdown.
type Selector struct {
	// Budget is the total countdown time before Runtime wins by default.
	Budget time.Duration

	// Tick is the per-poll wait for a keypress.
	Tick time.Duration

	// Keys supplies raw keypresses, normally stdin in raw mode.
	Keys io.Reader

	// Out receives the countdown banner. Defaults to os.Stdout.
	Out io.Writer

	// MenuKey and MaintKey are the matched keys. Zero values default to
	// 'm' and 's'.
	MenuKey  byte
	MaintKey byte

	// Getenv is swappable for tests; defaults to os.Getenv.
	Getenv func(string) string
}

func (s *Selector) getenv(key string) string {
	if s.Getenv == nil {
		return os.Getenv(key)
	}
	return s.Getenv(key)
}

func (s *Selector) out() io.Writer {
	if s.Out == nil {
		return os.Stdout
	}
	return s.Out
}

func (s *Selector) budget() time.Duration {
	if s.Budget <= 0 {
		return DefaultBudget
	}
	return s.Budget
}

func (s *Selector) tick() time.Duration {
	if s.Tick <= 0 {
		return DefaultTick
	}
	return s.Tick
}

func (s *Selector) menuKey() byte {
	if s.MenuKey == 0 {
		return 'm'
	}
	return s.MenuKey
}

func (s *Selector) maintKey() byte {
	if s.MaintKey == 0 {
		return 's'
	}
	return s.MaintKey
}

// RemoteSession reports whether this login arrived over the network
// rather than the local console. Remote logins never see the selector.
func (s *Selector) RemoteSession() bool {
	return s.getenv("SSH_CONNECTION") != "" || s.getenv("SSH_TTY") != ""
}

// Select runs the countdown and returns the single terminal decision.
func (s *Selector) Select() Decision {
	keys := make(chan byte, 1)
	go s.readKeys(keys)

	deadline := time.Now().Add(s.budget())
	lastShown := -1

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			fmt.Fprint(s.out(), "\r\033[K")
			return Runtime
		}

		if secs := int(remaining.Seconds()) + 1; secs != lastShown {
			fmt.Fprintf(s.out(), "\rStarting Survon in %ds — press [%c] for menu, [%c] for shell ",
				secs, s.menuKey(), s.maintKey())
			lastShown = secs
		}

		select {
		case key, ok := <-keys:
			if !ok {
				// Key source closed (no console input); wait out the
				// remainder of the budget.
				time.Sleep(remaining)
				fmt.Fprint(s.out(), "\r\033[K")
				return Runtime
			}
			fmt.Fprint(s.out(), "\r\033[K")
			switch key {
			case s.menuKey():
				return Menu
			case s.maintKey():
				return Maintenance
			default:
				return Runtime
			}
		case <-time.After(s.tick()):
		}
	}
}

// readKeys forwards single bytes from the key source. The goroutine ends
// when the source closes; the selector process execs or exits shortly
// after a decision, so a reader still blocked on the console does not
// leak past that.
func (s *Selector) readKeys(keys chan<- byte) {
	defer close(keys)
	if s.Keys == nil {
		return
	}
	buf := make([]byte, 1)
	for {
		n, err := s.Keys.Read(buf)
		if n > 0 {
			select {
			case keys <- buf[0]:
			default:
			}
			return
		}
		if err != nil {
			monitoring.Debugf("bootsel: key source closed: %v", err)
			return
		}
	}
}
