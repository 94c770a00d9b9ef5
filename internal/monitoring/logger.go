package monitoring

import "log"

// Logf is the package-level diagnostic logger for the analysis pipeline.
// It defaults to log.Printf; callers tag messages with a component prefix
// such as "[MaskPairs]" or "[Significance]".
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil installs a no-op
// logger, which tests use to mute pipeline chatter.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Quiet mutes the package logger and returns a restore function, for use
// as `defer monitoring.Quiet()()`.
func Quiet() func() {
	prev := Logf
	Logf = func(string, ...interface{}) {}
	return func() { Logf = prev }
}
