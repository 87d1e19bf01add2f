// Package monitoring holds the provisioner's diagnostic logger.
package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// DebugMode enables Debugf output. Set from the --debug flag.
var DebugMode bool

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Debugf logs through Logf only when DebugMode is enabled.
func Debugf(format string, v ...interface{}) {
	if DebugMode {
		Logf("debug: "+format, v...)
	}
}
