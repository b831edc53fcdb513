package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteSourceDocument writes a requirements document into dir and
// returns its path. One line per requirement text.
func WriteSourceDocument(t *testing.T, dir string, lines ...string) string {
	t.Helper()

	path := filepath.Join(dir, "requirements.txt")
	var content string
	for _, line := range lines {
		content += line + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write source document: %v", err)
	}
	return path
}

// DefaultSourceLines is a small system requirements document usable
// across pipeline tests.
var DefaultSourceLines = []string{
	"The vehicle shall maintain battery charge between 20% and 90%.",
	"The vehicle shall report telemetry to the ground station every 10 seconds.",
	"The power subsystem shall shed non-critical loads when charge falls below 25%.",
}
