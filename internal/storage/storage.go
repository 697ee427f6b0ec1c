// Package storage owns every file a job touches: the stored upload, the
// per-run result directories, and remediation outputs. Deleting a job's
// footprint is best-effort so a read-only directory can never strand the
// database row.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"spectra/internal/config"
	"spectra/internal/fileutil"
	"spectra/internal/logging"
)

// ReportFilename is the fixed artifact name the analysis engine contract
// promises to produce under the run's result directory.
const ReportFilename = "Master_Report.json"

// DashboardFilename is the rendered report document written next to the
// master report by the visualization step.
const DashboardFilename = "dashboard.html"

// Manager derives and maintains per-job storage paths.
type Manager struct {
	uploadDir string
	resultDir string
	logger    *slog.Logger
}

// NewManager constructs a storage manager rooted at the configured directories.
func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	return &Manager{
		uploadDir: cfg.Paths.UploadDir,
		resultDir: filepath.Join(cfg.Paths.DataDir, "results"),
		logger:    logging.WithComponent(logger, "storage"),
	}
}

// SaveUpload streams an uploaded asset into the upload directory under a
// collision-free name and returns the stored path. The original filename is
// kept as a suffix so operators can still recognize files on disk.
func (m *Manager) SaveUpload(originalFilename string, r io.Reader) (string, error) {
	base := filepath.Base(strings.TrimSpace(originalFilename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return "", fmt.Errorf("store upload: invalid filename %q", originalFilename)
	}

	stored := filepath.Join(m.uploadDir, uuid.NewString()+"_"+base)
	if _, err := fileutil.SaveStream(r, stored, 0o644); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return stored, nil
}

// NewResultDir allocates a fresh result directory for one analysis run. The
// name is keyed by job id and a timestamp so re-runs never collide.
func (m *Manager) NewResultDir(jobID int64) (string, error) {
	name := fmt.Sprintf("job_%d_%s", jobID, time.Now().UTC().Format("20060102_150405"))
	dir := filepath.Join(m.resultDir, name)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create result directory: %w", err)
	}
	return dir, nil
}

// ResultDirs returns every result directory ever allocated for a job.
func (m *Manager) ResultDirs(jobID int64) ([]string, error) {
	pattern := filepath.Join(m.resultDir, fmt.Sprintf("job_%d_*", jobID))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("list result directories: %w", err)
	}
	return matches, nil
}

// PersistReport writes report bytes delivered by a remote worker into a fresh
// result directory and returns the report path.
func (m *Manager) PersistReport(jobID int64, report []byte) (string, error) {
	dir, err := m.NewResultDir(jobID)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ReportFilename)
	if err := os.WriteFile(path, report, 0o644); err != nil {
		return "", fmt.Errorf("persist report: %w", err)
	}
	return path, nil
}

// PersistFixedArtifact streams a remediated asset delivered by a remote
// worker to the deterministic fixed-output path for the job's upload.
func (m *Manager) PersistFixedArtifact(uploadPath, fixType string, r io.Reader) (string, error) {
	target := FixedOutputPath(uploadPath, fixType)
	if _, err := fileutil.SaveStream(r, target, 0o644); err != nil {
		return "", fmt.Errorf("persist fixed artifact: %w", err)
	}
	return target, nil
}

// FixedOutputPath derives the deterministic output path for a remediation
// run: the upload's own directory, with the fix type folded into the name.
func FixedOutputPath(uploadPath, fixType string) string {
	dir := filepath.Dir(uploadPath)
	name := filepath.Base(uploadPath)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		ext = ".mp4"
	}
	return filepath.Join(dir, base+"_fixed_"+fixType+ext)
}

// DeleteJobFiles removes the job's uploaded file, every result directory
// produced for it, and any fixed outputs. Failures are logged and do not
// abort the remaining removals; the caller removes the job row regardless.
func (m *Manager) DeleteJobFiles(jobID int64, uploadPath, fixedPath string) {
	remove := func(path string, recursive bool) {
		if strings.TrimSpace(path) == "" {
			return
		}
		var err error
		if recursive {
			err = os.RemoveAll(path)
		} else {
			err = os.Remove(path)
		}
		if err != nil && !os.IsNotExist(err) {
			m.logger.Warn("cleanup failed",
				logging.Int64("job_id", jobID),
				logging.String("path", path),
				logging.Error(err))
		}
	}

	remove(uploadPath, false)
	remove(fixedPath, false)

	dirs, err := m.ResultDirs(jobID)
	if err != nil {
		m.logger.Warn("listing result directories failed", logging.Int64("job_id", jobID), logging.Error(err))
		return
	}
	for _, dir := range dirs {
		remove(dir, true)
	}
}
