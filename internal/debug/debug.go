// Package debug provides diagnostic logging gated by RWM_DEBUG and the
// verbose/quiet flags. While serving over stdio the log is redirected to
// a rotating file so protocol output stays clean.
package debug

import (
	"fmt"
	"io"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	enabled     = os.Getenv("RWM_DEBUG") != ""
	verboseMode = false
	quietMode   = false
	logMutex    sync.Mutex
	logOut      io.Writer = os.Stderr
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if !enabled && !verboseMode {
		return
	}
	logMutex.Lock()
	defer logMutex.Unlock()
	fmt.Fprintf(logOut, format, args...)
}

func Printf(format string, args ...interface{}) {
	if enabled || verboseMode {
		fmt.Printf(format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		fmt.Printf(format, args...)
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		fmt.Println(args...)
	}
}

// LogToFile redirects diagnostic output to a size-rotated log file and
// returns a closer for shutdown. Used by serve, where stdout carries the
// protocol and stderr may be swallowed by the host.
func LogToFile(path string) io.Closer {
	lj := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     14, // days
		Compress:   true,
	}
	logMutex.Lock()
	defer logMutex.Unlock()
	logOut = lj
	return lj
}

// ResetOutput restores stderr logging. Used by tests.
func ResetOutput() {
	logMutex.Lock()
	defer logMutex.Unlock()
	logOut = os.Stderr
}
