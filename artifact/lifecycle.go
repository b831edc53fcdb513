package artifact

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// RetentionConfig defines the retention policy for run artifacts.
type RetentionConfig struct {
	RetentionDays        int  // Days to keep runs before deletion
	ArchiveAfterDays     int  // Days before compressing a run into the archive
	ArchiveRetentionDays int  // Days to keep archives
	KeepFailed           bool // Never expire failed runs
	KeepMinRuns          int  // Minimum runs to keep regardless of age
}

// DefaultRetentionConfig returns sensible defaults.
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		RetentionDays:        30,
		ArchiveAfterDays:     7,
		ArchiveRetentionDays: 90,
		KeepFailed:           true,
		KeepMinRuns:          50,
	}
}

// LifecycleManager applies retention policy to run artifacts.
type LifecycleManager struct {
	baseDir string
	config  RetentionConfig
}

// NewLifecycleManager creates a lifecycle manager over the same base
// directory an artifact Manager writes to.
func NewLifecycleManager(baseDir string, config RetentionConfig) *LifecycleManager {
	return &LifecycleManager{baseDir: baseDir, config: config}
}

// CleanupResult summarizes the actions taken by a cleanup pass.
type CleanupResult struct {
	Archived   []string `json:"archived"`
	Deleted    []string `json:"deleted"`
	Kept       []string `json:"kept"`
	Errors     []string `json:"errors,omitempty"`
	SpaceSaved int64    `json:"space_saved"`
}

// Cleanup archives and deletes runs per the retention policy. With dryRun
// set it reports what would happen without touching the disk.
func (m *LifecycleManager) Cleanup(dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{}

	runsDir := filepath.Join(m.baseDir, "runs")
	entries, err := os.ReadDir(runsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, err
	}

	now := time.Now()
	archiveBefore := now.Add(-time.Duration(m.config.ArchiveAfterDays) * 24 * time.Hour)
	deleteBefore := now.Add(-time.Duration(m.config.RetentionDays) * 24 * time.Hour)

	type runInfo struct {
		id      string
		status  string
		size    int64
		endedAt time.Time
	}

	var runs []runInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		runID := entry.Name()
		runDir := filepath.Join(runsDir, runID)
		status, endedAt := readRunStatus(runDir)
		runs = append(runs, runInfo{
			id:      runID,
			status:  status,
			size:    dirSize(runDir),
			endedAt: endedAt,
		})
	}

	// Oldest first so the retention floor keeps the newest runs.
	sort.Slice(runs, func(i, j int) bool {
		return runs[i].endedAt.Before(runs[j].endedAt)
	})

	removed := 0
	for _, run := range runs {
		switch {
		case m.config.KeepFailed && run.status == "failed",
			run.status == "running",
			run.status == "awaiting_review":
			result.Kept = append(result.Kept, run.id)
			continue
		}

		if len(runs)-removed-1 < m.config.KeepMinRuns {
			result.Kept = append(result.Kept, run.id)
			continue
		}

		runDir := filepath.Join(runsDir, run.id)
		switch {
		case run.endedAt.Before(deleteBefore):
			if !dryRun {
				if err := os.RemoveAll(runDir); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("delete %s: %v", run.id, err))
					continue
				}
			}
			result.Deleted = append(result.Deleted, run.id)
			result.SpaceSaved += run.size
			removed++

		case run.endedAt.Before(archiveBefore):
			if !dryRun {
				if err := m.archiveRun(run.id); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("archive %s: %v", run.id, err))
					continue
				}
			}
			result.Archived = append(result.Archived, run.id)
			result.SpaceSaved += run.size / 2 // rough compression estimate
			removed++

		default:
			result.Kept = append(result.Kept, run.id)
		}
	}

	return result, nil
}

// archiveRun compresses a run directory into <base>/archive/<yyyy-mm>/.
func (m *LifecycleManager) archiveRun(runID string) error {
	runDir := filepath.Join(m.baseDir, "runs", runID)

	archiveDir := filepath.Join(m.baseDir, "archive", archiveMonth(runID))
	if err := os.MkdirAll(archiveDir, 0755); err != nil {
		return err
	}
	archivePath := filepath.Join(archiveDir, runID+".tar.gz")

	f, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)

	err = filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		rel, _ := filepath.Rel(runDir, path)
		header.Name = filepath.Join(runID, rel)

		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		_, err = io.Copy(tw, file)
		return err
	})
	if err != nil {
		tw.Close()
		gz.Close()
		f.Close()
		os.Remove(archivePath)
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.RemoveAll(runDir)
}

// RestoreArchive extracts an archived run back into the runs directory.
func (m *LifecycleManager) RestoreArchive(runID string) error {
	archivePath := m.findArchive(runID)
	if archivePath == "" {
		return fmt.Errorf("archive not found: %s", runID)
	}

	runDir := filepath.Join(m.baseDir, "runs", runID)
	if _, err := os.Stat(runDir); err == nil {
		return fmt.Errorf("run already exists: %s", runID)
	}

	return extractArchive(archivePath, filepath.Dir(runDir))
}

// ListArchives returns all archived run IDs.
func (m *LifecycleManager) ListArchives() ([]string, error) {
	var archives []string
	archiveDir := filepath.Join(m.baseDir, "archive")

	err := filepath.Walk(archiveDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if strings.HasSuffix(info.Name(), ".tar.gz") {
			archives = append(archives, strings.TrimSuffix(info.Name(), ".tar.gz"))
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	sort.Strings(archives)
	return archives, nil
}

// CleanupArchives deletes archives older than the archive retention period.
func (m *LifecycleManager) CleanupArchives(dryRun bool) (*CleanupResult, error) {
	result := &CleanupResult{}
	threshold := time.Now().Add(-time.Duration(m.config.ArchiveRetentionDays) * 24 * time.Hour)

	err := filepath.Walk(filepath.Join(m.baseDir, "archive"), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(info.Name(), ".tar.gz") {
			return nil
		}

		runID := strings.TrimSuffix(info.Name(), ".tar.gz")
		if info.ModTime().Before(threshold) {
			if !dryRun {
				if err := os.Remove(path); err != nil {
					result.Errors = append(result.Errors, fmt.Sprintf("delete archive %s: %v", runID, err))
					return nil
				}
			}
			result.Deleted = append(result.Deleted, runID)
			result.SpaceSaved += info.Size()
		} else {
			result.Kept = append(result.Kept, runID)
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	return result, nil
}

// DiskUsage reports artifact disk usage.
func (m *LifecycleManager) DiskUsage() (*DiskUsageStats, error) {
	stats := &DiskUsageStats{}

	runsDir := filepath.Join(m.baseDir, "runs")
	if entries, err := os.ReadDir(runsDir); err == nil {
		for _, entry := range entries {
			if entry.IsDir() {
				stats.RunCount++
				stats.ActiveSize += dirSize(filepath.Join(runsDir, entry.Name()))
			}
		}
	}

	filepath.Walk(filepath.Join(m.baseDir, "archive"), func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() || !strings.HasSuffix(info.Name(), ".tar.gz") {
			return nil
		}
		stats.ArchiveCount++
		stats.ArchiveSize += info.Size()
		return nil
	})

	stats.TotalSize = stats.ActiveSize + stats.ArchiveSize
	return stats, nil
}

// DiskUsageStats contains artifact disk usage statistics.
type DiskUsageStats struct {
	RunCount     int   `json:"run_count"`
	ArchiveCount int   `json:"archive_count"`
	ActiveSize   int64 `json:"active_size"`
	ArchiveSize  int64 `json:"archive_size"`
	TotalSize    int64 `json:"total_size"`
}

func (m *LifecycleManager) findArchive(runID string) string {
	path := filepath.Join(m.baseDir, "archive", archiveMonth(runID), runID+".tar.gz")
	if _, err := os.Stat(path); err == nil {
		return path
	}

	var found string
	filepath.Walk(filepath.Join(m.baseDir, "archive"), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.Name() == runID+".tar.gz" {
			found = path
			return filepath.SkipAll
		}
		return nil
	})
	return found
}

func extractArchive(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		target := filepath.Join(destDir, header.Name)
		if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(destDir)) {
			return fmt.Errorf("invalid path in archive: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return err
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return err
			}
			out, err := os.Create(target)
			if err != nil {
				return err
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return err
			}
			out.Close()
			if err := os.Chmod(target, os.FileMode(header.Mode)); err != nil {
				return err
			}
		}
	}
	return nil
}

// readRunStatus reads the run status from the state.json artifact, falling
// back to the directory's modification time when it is absent.
func readRunStatus(runDir string) (status string, endedAt time.Time) {
	path := filepath.Join(runDir, "state.json")
	info, err := os.Stat(path)
	if err != nil {
		if dirInfo, derr := os.Stat(runDir); derr == nil {
			return "", dirInfo.ModTime()
		}
		return "", time.Time{}
	}
	endedAt = info.ModTime()

	data, err := os.ReadFile(path)
	if err != nil {
		return "", endedAt
	}
	var meta struct {
		Status string `json:"status"`
	}
	if json.Unmarshal(data, &meta) == nil {
		status = meta.Status
	}
	return status, endedAt
}

// archiveMonth derives the archive bucket from a run ID, which starts with
// a yyyymmdd timestamp.
func archiveMonth(runID string) string {
	if len(runID) >= 6 && isDigits(runID[:6]) {
		return runID[:4] + "-" + runID[4:6]
	}
	return time.Now().Format("2006-01")
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func dirSize(path string) int64 {
	var size int64
	filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size
}
