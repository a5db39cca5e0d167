package monitoring

import (
	"fmt"
	"log"
	"os"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// Progressf prints user-facing progress lines ("Converting a.asc to a.maf")
// to stdout. It is separate from Logf so -quiet can mute both independently
// of where diagnostics go.
var Progressf func(format string, v ...interface{}) = func(format string, v ...interface{}) {
	fmt.Fprintf(os.Stdout, format+"\n", v...)
}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetProgress replaces the progress printer. Passing nil mutes progress.
func SetProgress(f func(format string, v ...interface{})) {
	if f == nil {
		Progressf = func(string, ...interface{}) {}
		return
	}
	Progressf = f
}

// Mute silences both diagnostics and progress output.
func Mute() {
	SetLogger(nil)
	SetProgress(nil)
}
