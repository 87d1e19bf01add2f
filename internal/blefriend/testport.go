package blefriend

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ScriptedPort implements Porter with canned responses for testing
// without real hardware. Each written command line dequeues the next
// scripted response into the read buffer.
type ScriptedPort struct {
	mu sync.Mutex

	// Responses are consumed one per command written.
	Responses []string

	// WriteBuffer captures everything written to the port.
	WriteBuffer bytes.Buffer

	// WriteError, if set, is returned by the next Write.
	WriteError error

	// Closed records whether Close was called.
	Closed bool

	readBuf bytes.Buffer
}

// Write records the command and queues the next scripted response.
func (p *ScriptedPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.Closed {
		return 0, errors.New("serial port closed")
	}
	if p.WriteError != nil {
		err := p.WriteError
		p.WriteError = nil
		return 0, err
	}

	n, err := p.WriteBuffer.Write(b)
	if err != nil {
		return n, err
	}
	if len(p.Responses) > 0 {
		p.readBuf.WriteString(p.Responses[0])
		p.Responses = p.Responses[1:]
	}
	return n, nil
}

// Read drains the queued response; an empty queue reads as EOF so the
// session's response window terminates immediately in tests.
func (p *ScriptedPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.readBuf.Len() == 0 {
		return 0, io.EOF
	}
	return p.readBuf.Read(b)
}

// Close marks the port closed.
func (p *ScriptedPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Written returns everything written to the port so far.
func (p *ScriptedPort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.WriteBuffer.String()
}
