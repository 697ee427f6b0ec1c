package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrEngineNotFound indicates the configured engine script is absent.
	ErrEngineNotFound = errors.New("engine script not found")

	// ErrReportMissing indicates the engine exited cleanly but never produced
	// the report artifact its contract promises.
	ErrReportMissing = errors.New("report artifact missing")
)

// ExitError reports a nonzero engine exit, carrying the exit code as data.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("engine exited with code %d", e.Code)
}
