package artifact

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Manager writes and lists artifacts for pipeline runs.
type Manager struct {
	baseDir string
}

// NewManager creates an artifact manager rooted at baseDir.
func NewManager(baseDir string) *Manager {
	return &Manager{baseDir: baseDir}
}

// RunDir returns the directory holding a run's artifacts.
func (m *Manager) RunDir(runID string) string {
	return filepath.Join(m.baseDir, "runs", runID)
}

// SaveJSON marshals v with indentation and writes it as <name>.json.
func (m *Manager) SaveJSON(runID, name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact %s: %w", name, err)
	}
	return m.write(runID, name+".json", data)
}

// SaveText writes content as-is under the given filename.
func (m *Manager) SaveText(runID, filename, content string) (string, error) {
	return m.write(runID, filename, []byte(content))
}

func (m *Manager) write(runID, filename string, data []byte) (string, error) {
	dir := m.RunDir(runID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create run dir: %w", err)
	}

	path := filepath.Join(dir, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("write artifact %s: %w", filename, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("write artifact %s: %w", filename, err)
	}
	return path, nil
}

// List returns the artifact filenames saved for a run, sorted by name.
func (m *Manager) List(runID string) ([]string, error) {
	entries, err := os.ReadDir(m.RunDir(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Runs returns the run IDs with artifacts on disk, newest name first.
func (m *Manager) Runs() ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(m.baseDir, "runs"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			ids = append(ids, entry.Name())
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
