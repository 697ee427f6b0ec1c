package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteAnalysisScript writes a stub analysis engine under the test temp dir.
// The script emits progress lines on stdout, optionally writes
// Master_Report.json into the --outdir argument, and exits with the given
// code. It returns the script path.
func WriteAnalysisScript(t testing.TB, dir string, writeReport bool, exitCode int) string {
	t.Helper()

	report := ""
	if writeReport {
		report = `printf '{"verdict":"pass"}' > "$outdir/Master_Report.json"`
	}
	script := fmt.Sprintf(`#!/bin/sh
outdir=""
while [ $# -gt 0 ]; do
  case "$1" in
    --outdir) outdir="$2"; shift 2 ;;
    *) shift ;;
  esac
done
echo "[PROGRESS] 10 - Loading media"
echo "[PROGRESS] 55 - Analyzing frames"
echo "[PROGRESS] 100"
%s
exit %d
`, report, exitCode)
	return writeScript(t, dir, "analyze.sh", script)
}

// WriteFixScript writes a stub remediation engine that copies a marker into
// the --output argument and exits with the given code.
func WriteFixScript(t testing.TB, dir string, exitCode int) string {
	t.Helper()

	script := fmt.Sprintf(`#!/bin/sh
output=""
while [ $# -gt 0 ]; do
  case "$1" in
    --output) output="$2"; shift 2 ;;
    *) shift ;;
  esac
done
if [ -n "$output" ] && [ %d -eq 0 ]; then
  printf 'fixed media' > "$output"
fi
exit %d
`, exitCode, exitCode)
	return writeScript(t, dir, "fix.sh", script)
}

// WriteUpload creates a small media file to submit in tests and returns its
// path.
func WriteUpload(t testing.TB, dir, name string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("not really mp4"), 0o644); err != nil {
		t.Fatalf("write upload fixture: %v", err)
	}
	return path
}

func writeScript(t testing.TB, dir, name, body string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o755); err != nil {
		t.Fatalf("write stub script: %v", err)
	}
	return path
}
