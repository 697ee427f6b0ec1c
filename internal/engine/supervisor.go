package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"spectra/internal/logging"
)

var commandContext = exec.CommandContext

// progressPattern matches the engine contract's progress grammar:
// [PROGRESS] <integer> [- <free text>]
var progressPattern = regexp.MustCompile(`\[PROGRESS\]\s+(\d+)(?:\s+-\s+(.*))?`)

// ProgressFunc receives progress events parsed from the engine's output.
// The step text is empty when the event carried none.
type ProgressFunc func(percent int, step string)

// Supervisor spawns engine invocations, streams their combined output, and
// classifies the run's outcome. Non-progress lines are treated as opaque log
// chatter and surfaced only at debug level.
type Supervisor struct {
	logger *slog.Logger
}

// NewSupervisor constructs a supervisor logging through the given logger.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	return &Supervisor{logger: logging.WithComponent(logger, "supervisor")}
}

// Run launches the invocation, merges stdout and stderr into one ordered
// stream, forwards parsed progress events, and waits for exit. A nonzero exit
// is returned as *ExitError; a missing script as ErrEngineNotFound.
func (s *Supervisor) Run(ctx context.Context, inv Invocation, progress ProgressFunc) error {
	if inv.Script != "" {
		if _, err := os.Stat(inv.Script); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("%w: %s", ErrEngineNotFound, inv.Script)
			}
			return fmt.Errorf("stat engine script: %w", err)
		}
	}

	cmd := commandContext(ctx, inv.Binary, inv.Args...) //nolint:gosec
	if inv.Dir != "" && inv.Dir != "." {
		cmd.Dir = inv.Dir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start engine: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		match := progressPattern.FindStringSubmatch(line)
		if match == nil {
			s.logger.Debug("engine output", logging.String("line", line))
			continue
		}
		percent, convErr := strconv.Atoi(match[1])
		if convErr != nil {
			continue
		}
		if progress != nil {
			progress(percent, strings.TrimSpace(match[2]))
		}
	}
	if scanErr := scanner.Err(); scanErr != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read engine output: %w", scanErr)
	}

	if err := cmd.Wait(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			return &ExitError{Code: exitErr.ExitCode()}
		}
		return fmt.Errorf("wait for engine: %w", err)
	}
	return nil
}

// FindReport searches the result directory tree for the fixed-name report
// artifact and returns its absolute path. Absence after a clean exit is a
// failure in its own right because the engine contract promises the file.
func FindReport(resultDir, reportName string) (string, error) {
	var found string
	err := filepath.WalkDir(resultDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && d.Name() == reportName {
			found = path
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("search result directory: %w", err)
	}
	if found == "" {
		return "", fmt.Errorf("%w: no %s under %s", ErrReportMissing, reportName, resultDir)
	}
	abs, err := filepath.Abs(found)
	if err != nil {
		return "", fmt.Errorf("resolve report path: %w", err)
	}
	return abs, nil
}
