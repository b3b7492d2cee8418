package qc

import (
	"errors"
	"fmt"
	"strings"
)

// Process exit codes. The exit code is the authoritative machine-readable
// signal for callers; messages on stderr are for humans.
const (
	ExitOK      = 0
	ExitOption  = 2
	ExitUsage   = 3
	ExitCleanup = 4
	ExitStage   = 5
)

// UsageError reports a wrong positional-argument count.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return e.Reason
}

// OptionError reports an invalid run configuration: a bad flag value, an
// unreadable input, or an external artifact path that cannot be written.
type OptionError struct {
	Reason string
}

func (e *OptionError) Error() string {
	return e.Reason
}

// StageError reports an external engine that could not be launched or
// exited nonzero. ExitCode is -1 when the process never started.
type StageError struct {
	Stage    string
	ExitCode int
	Detail   string
}

func (e *StageError) Error() string {
	msg := fmt.Sprintf("stage %s failed (exit status %d)", e.Stage, e.ExitCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// DataShapeError reports malformed tabular output from an upstream
// engine, e.g. a header/value column-count mismatch in the contamination
// summary. It is fatal, like a stage failure.
type DataShapeError struct {
	Stage  string
	Reason string
}

func (e *DataShapeError) Error() string {
	return fmt.Sprintf("stage %s produced malformed output: %s", e.Stage, e.Reason)
}

// CleanupError reports working files that could not be removed after the
// report was already written. The run is a degraded success: the report
// exists, but cleanup is incomplete.
type CleanupError struct {
	Failures []string
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("cleanup incomplete: %s", strings.Join(e.Failures, "; "))
}

// ExitCode maps an error from the pipeline to a process exit code.
// Unrecognised errors (including cobra flag-parsing errors) count as
// option errors.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsage
	}
	var cleanupErr *CleanupError
	if errors.As(err, &cleanupErr) {
		return ExitCleanup
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return ExitStage
	}
	var shapeErr *DataShapeError
	if errors.As(err, &shapeErr) {
		return ExitStage
	}
	return ExitOption
}
