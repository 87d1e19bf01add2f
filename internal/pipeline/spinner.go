package pipeline

import "fmt"

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Spinner produces a simple single-line progress animation.
type Spinner struct {
	message string
	frame   int
}

// NewSpinner creates a spinner with the given message.
func NewSpinner(message string) *Spinner {
	return &Spinner{message: message}
}

// Next returns the next animation frame, prefixed with a carriage return
// so successive frames overwrite each other on the same line.
func (s *Spinner) Next() string {
	frame := spinnerFrames[s.frame%len(spinnerFrames)]
	s.frame++
	return fmt.Sprintf("\r%s %s...", frame, s.message)
}
