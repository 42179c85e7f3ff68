// Copyright (c) 2026 Keymaster Team
// Keyfetch - SSH key provisioning utility
// This source code is licensed under the MIT license found in the LICENSE file.

// Package logging provides the application-wide logger. It wraps
// charmbracelet/log behind a small set of formatted helpers so the rest of
// the codebase does not depend on the logging library directly.
package logging

import (
	"fmt"
	"os"

	clog "github.com/charmbracelet/log"
)

// L is the package-level logger. Callers should use the helper functions
// below for compatibility with existing calls.
var L = clog.NewWithOptions(os.Stderr, clog.Options{ReportTimestamp: false})

// SetDebug enables or disables debug logging for the application.
func SetDebug(enabled bool) {
	if enabled {
		L.SetLevel(clog.DebugLevel)
	} else {
		L.SetLevel(clog.InfoLevel)
	}
}

// Info logs a pre-formatted message verbatim. Use this for strings built
// elsewhere (translations, paths) that may themselves contain '%'.
func Info(msg string) {
	L.Info(msg)
}

// Warn logs a pre-formatted message verbatim.
func Warn(msg string) {
	L.Warn(msg)
}

// Error logs a pre-formatted message verbatim.
func Error(msg string) {
	L.Error(msg)
}

// Debugf logs a debug-level formatted message.
func Debugf(format string, v ...any) {
	L.Debug(fmt.Sprintf(format, v...))
}

// Infof logs an info-level formatted message.
func Infof(format string, v ...any) {
	L.Info(fmt.Sprintf(format, v...))
}

// Warnf logs a warning-level formatted message.
func Warnf(format string, v ...any) {
	L.Warn(fmt.Sprintf(format, v...))
}

// Errorf logs an error-level formatted message.
func Errorf(format string, v ...any) {
	L.Error(fmt.Sprintf(format, v...))
}
