//go:build !linux
// +build !linux

package util

import (
	"io"
	"log"
	"os"
)

var logWriter io.Writer = os.Stderr

// GetLogWriter returns the current log writer (for use by other packages)
func GetLogWriter() io.Writer {
	return logWriter
}

// SetupLogging configures the logging system. Journald is Linux-only; on
// other platforms withJournald is ignored and the default stderr writer is
// kept.
func SetupLogging(withJournald bool) {
	if withJournald {
		log.Println("Warning: journald logging requested but not available on this platform")
	}
}
