// Package blefriend configures a Bluefruit LE Friend dongle over its
// serial AT-command interface so the peripheral advertises and accepts
// connections as soon as it powers up.
//
// The dongle's MODE switch selects between command and data passthrough
// wiring, and the protocol cannot observe the switch position. Every
// session therefore brackets the AT exchange with blocking operator
// confirmations: CMD before any byte is sent, DATA after the port closes.
package blefriend

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/survon/provision/internal/monitoring"
)

// ErrWriteFailed indicates a short write to the serial port.
var ErrWriteFailed = fmt.Errorf("failed to write to serial port")

// Porter is the minimal serial port surface the session needs. The
// abstraction enables unit testing without real hardware.
type Porter interface {
	io.ReadWriter
	io.Closer
}

// PortOpener opens a serial port at the given path and baud rate.
type PortOpener func(path string, baudRate int) (Porter, error)

// Device name patterns for the dongle's USB-serial bridge. The first
// match wins; zero matches means no hardware is attached, which is a
// normal outcome on appliances shipped without the BLE option.
var devicePatterns = []string{
	"/dev/ttyUSB*",
	"/dev/cu.usbserial*",
}

const (
	// baudRate is fixed by the dongle's CMD-mode UART.
	baudRate = 9600

	identifySignatureA = "Bluefruit"
	identifySignatureB = "BLEFRIEND"
)

// Session drives one configuration exchange over a single serial
// connection. The session is torn down (port closed) on both success and
// failure paths.
type Session struct {
	// Open opens the serial port. Defaults to the real opener in
	// port.go.
	Open PortOpener

	// Glob locates candidate device paths. Defaults to filepath.Glob.
	Glob func(pattern string) ([]string, error)

	// In and Out carry the operator prompts. Prompts block until input
	// by design: they gate physically-actuated switch state.
	In  io.Reader
	Out io.Writer

	// ResponseWait bounds how long a command waits for its response.
	ResponseWait time.Duration

	// ResetWait is the longer settle window after the reset command,
	// while the dongle persists settings to its non-volatile storage.
	ResetWait time.Duration

	// reader wraps In exactly once so consecutive prompts do not lose
	// buffered input.
	reader *bufio.Reader
}

func (s *Session) glob(pattern string) ([]string, error) {
	if s.Glob == nil {
		return filepath.Glob(pattern)
	}
	return s.Glob(pattern)
}

func (s *Session) responseWait() time.Duration {
	if s.ResponseWait <= 0 {
		return time.Second
	}
	return s.ResponseWait
}

func (s *Session) resetWait() time.Duration {
	if s.ResetWait <= 0 {
		return 3 * time.Second
	}
	return s.ResetWait
}

// FindDevice returns the serial path of an attached dongle, or ok=false
// when no matching device is present.
func (s *Session) FindDevice() (path string, ok bool, err error) {
	for _, pattern := range devicePatterns {
		matches, err := s.glob(pattern)
		if err != nil {
			return "", false, err
		}
		if len(matches) == 0 {
			continue
		}
		if len(matches) > 1 {
			monitoring.Logf("blefriend: %d serial devices match %s, using %s", len(matches), pattern, matches[0])
		}
		return matches[0], true, nil
	}
	return "", false, nil
}

// Configure runs the full protocol: identify, enable advertising, reset.
// Absence of hardware is a no-op success. A failed session is returned as
// an error for the caller to classify; the pipeline treats it as
// best-effort.
func (s *Session) Configure(ctx context.Context) error {
	path, found, err := s.FindDevice()
	if err != nil {
		return fmt.Errorf("failed to scan for serial devices: %w", err)
	}
	if !found {
		fmt.Fprintln(s.Out, "No BLE dongle detected; skipping dongle configuration.")
		return nil
	}
	fmt.Fprintf(s.Out, "Found BLE dongle at %s\n", path)

	if err := s.confirm("Set the MODE switch on the Bluefruit to CMD, then press Enter (leave it on CMD until prompted to switch back)."); err != nil {
		return fmt.Errorf("command-mode confirmation aborted: %w", err)
	}

	// From here the switch is in CMD; whatever happens, remind the
	// operator to flip it back before normal use.
	defer fmt.Fprintln(s.Out, "Remember: the dongle only passes data with the MODE switch on DATA.")

	open := s.Open
	if open == nil {
		open = OpenSerial
	}
	port, err := open(path, baudRate)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer port.Close()

	// Cancellation is checked between protocol phases rather than killing
	// the process mid-exchange, so the deferred switch-back reminder runs.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("session interrupted: %w", err)
	}

	if err := s.identify(port); err != nil {
		return err
	}

	// Feature toggles are best-effort: the dongle answers OK or ERROR
	// depending on firmware revision, and neither should kill the
	// session.
	for _, cmd := range []string{"AT+GAPCONNECTABLE=1", "AT+GAPSTARTADV"} {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("session interrupted: %w", err)
		}
		resp, err := s.exchange(port, cmd)
		if err != nil {
			return fmt.Errorf("failed to send %s: %w", cmd, err)
		}
		switch {
		case strings.Contains(resp, "OK"):
		case strings.Contains(resp, "ERROR"):
			monitoring.Logf("blefriend: dongle rejected %s (firmware may predate the feature)", cmd)
		default:
			monitoring.Logf("blefriend: unexpected response to %s: %q", cmd, strings.TrimSpace(resp))
		}
	}

	if err := s.send(port, "ATZ"); err != nil {
		return fmt.Errorf("failed to send reset: %w", err)
	}
	fmt.Fprintln(s.Out, "Dongle resetting; waiting for settings to persist...")
	select {
	case <-time.After(s.resetWait()):
	case <-ctx.Done():
		return fmt.Errorf("interrupted while the dongle was resetting: %w", ctx.Err())
	}

	if err := s.confirm("Return the MODE switch to DATA, then press Enter."); err != nil {
		return fmt.Errorf("data-mode confirmation aborted: %w", err)
	}

	fmt.Fprintln(s.Out, "  ✓ Dongle configured for auto-advertising")
	return nil
}

// identify sends ATI and requires the device signature in the response.
// No configuration command is sent until identification succeeds.
func (s *Session) identify(port Porter) error {
	resp, err := s.exchange(port, "ATI")
	if err != nil {
		return fmt.Errorf("identification query failed: %w", err)
	}
	if !strings.Contains(resp, identifySignatureA) && !strings.Contains(resp, identifySignatureB) {
		return fmt.Errorf("device did not identify as a Bluefruit (response %q); "+
			"either the MODE switch is not on CMD, or the serial connection/baud rate is wrong — "+
			"unplug the dongle, check the switch, and re-run", strings.TrimSpace(resp))
	}
	return nil
}

// send writes one command, appending the AT line terminator.
func (s *Session) send(port Porter, command string) error {
	if !strings.HasSuffix(command, "\r\n") {
		command += "\r\n"
	}
	n, err := port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// exchange sends a command and collects whatever the dongle answers
// within the bounded response window.
func (s *Session) exchange(port Porter, command string) (string, error) {
	if err := s.send(port, command); err != nil {
		return "", err
	}
	return s.readResponse(port), nil
}

// readResponse reads from the port until the response terminates with OK
// or ERROR, the port runs dry, or the wait window elapses. Real ports are
// opened with a short read timeout so a silent device returns zero-byte
// reads rather than blocking forever.
func (s *Session) readResponse(port Porter) string {
	var b strings.Builder
	deadline := time.Now().Add(s.responseWait())
	buf := make([]byte, 256)

	for time.Now().Before(deadline) {
		n, err := port.Read(buf)
		if n > 0 {
			b.Write(buf[:n])
			resp := b.String()
			if strings.Contains(resp, "OK\r\n") || strings.Contains(resp, "ERROR\r\n") {
				break
			}
		}
		if err != nil {
			break
		}
		if n == 0 {
			time.Sleep(20 * time.Millisecond)
		}
	}
	return b.String()
}

// confirm blocks until the operator acknowledges the prompt. EOF means
// there is no operator to flip the switch, which fails the session.
func (s *Session) confirm(prompt string) error {
	if s.reader == nil {
		s.reader = bufio.NewReader(s.In)
	}
	fmt.Fprintf(s.Out, "%s ", prompt)
	_, err := s.reader.ReadString('\n')
	if err == io.EOF {
		return fmt.Errorf("no operator input available")
	}
	return err
}
