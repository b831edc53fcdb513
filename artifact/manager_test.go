package artifact

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestManagerSaveJSON(t *testing.T) {
	m := NewManager(t.TempDir())

	type payload struct {
		Name  string `json:"name"`
		Score float64
	}
	path, err := m.SaveJSON("20260101_120000_power", "quality_metrics", payload{Name: "x", Score: 0.9})
	if err != nil {
		t.Fatalf("SaveJSON() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var got payload
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("artifact is not valid JSON: %v", err)
	}
	if got.Name != "x" || got.Score != 0.9 {
		t.Errorf("round trip = %+v", got)
	}
	if filepath.Base(path) != "quality_metrics.json" {
		t.Errorf("filename = %s", filepath.Base(path))
	}
}

func TestManagerSaveText(t *testing.T) {
	m := NewManager(t.TempDir())

	path, err := m.SaveText("20260101_120000_power", "requirements.md", "# Doc\n")
	if err != nil {
		t.Fatalf("SaveText() error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	if string(data) != "# Doc\n" {
		t.Errorf("content = %q", data)
	}
}

func TestManagerListAndRuns(t *testing.T) {
	m := NewManager(t.TempDir())

	// Unknown run lists as empty, not an error.
	names, err := m.List("20260101_120000_missing")
	if err != nil || names != nil {
		t.Errorf("List(missing) = %v, %v", names, err)
	}

	if _, err := m.SaveText("20260102_000000_b", "doc.md", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SaveJSON("20260102_000000_b", "analysis", map[string]string{}); err != nil {
		t.Fatal(err)
	}
	if _, err := m.SaveText("20260101_000000_a", "doc.md", "y"); err != nil {
		t.Fatal(err)
	}

	names, err = m.List("20260102_000000_b")
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if !reflect.DeepEqual(names, []string{"analysis.json", "doc.md"}) {
		t.Errorf("List() = %v", names)
	}

	ids, err := m.Runs()
	if err != nil {
		t.Fatalf("Runs() error: %v", err)
	}
	if !reflect.DeepEqual(ids, []string{"20260102_000000_b", "20260101_000000_a"}) {
		t.Errorf("Runs() = %v, want newest first", ids)
	}
}

func TestManagerNoTempLeftovers(t *testing.T) {
	m := NewManager(t.TempDir())

	if _, err := m.SaveText("20260101_120000_power", "doc.md", "x"); err != nil {
		t.Fatalf("SaveText() error: %v", err)
	}

	entries, err := os.ReadDir(m.RunDir("20260101_120000_power"))
	if err != nil {
		t.Fatalf("ReadDir(): %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}
