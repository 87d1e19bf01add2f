package blefriend

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// OpenSerial opens a real serial port for the dongle's CMD-mode UART:
// 8N1 at the given baud rate with a short read timeout, so a silent
// device yields zero-byte reads instead of blocking the response window.
// RTS and DTR are asserted for the dongle's hardware flow control.
func OpenSerial(path string, baudRate int) (Porter, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, err
	}

	if err := port.SetReadTimeout(100 * time.Millisecond); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	if err := port.SetRTS(true); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to assert RTS: %w", err)
	}
	if err := port.SetDTR(true); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to assert DTR: %w", err)
	}

	return port, nil
}
