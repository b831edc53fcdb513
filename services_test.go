package reqflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/smokejel/reqflow/checkpoint"
	"github.com/smokejel/reqflow/config"
	"github.com/smokejel/reqflow/notify"
)

func TestNewServicesCheckpointBackend(t *testing.T) {
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()

	services, err := NewServices(cfg)
	if err != nil {
		t.Fatalf("NewServices() error: %v", err)
	}
	if _, ok := services.Checkpoints.(*checkpoint.FileStore); !ok {
		t.Errorf("default backend = %T, want *checkpoint.FileStore", services.Checkpoints)
	}

	cfg = config.Default()
	cfg.BaseDir = t.TempDir()
	cfg.Checkpoint.Backend = "sqlite"
	services, err = NewServices(cfg)
	if err != nil {
		t.Fatalf("NewServices() sqlite error: %v", err)
	}
	if _, ok := services.Checkpoints.(*checkpoint.SQLiteStore); !ok {
		t.Errorf("sqlite backend = %T, want *checkpoint.SQLiteStore", services.Checkpoints)
	}

	cfg = config.Default()
	cfg.BaseDir = t.TempDir()
	cfg.Checkpoint.Backend = "redis"
	if _, err := NewServices(cfg); err == nil {
		t.Error("unknown checkpoint backend must be rejected")
	}
}

func TestNewServicesCheckpointPathOverride(t *testing.T) {
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()
	cfg.Checkpoint.Backend = "sqlite"
	cfg.Checkpoint.Path = filepath.Join(t.TempDir(), "nested", "state.db")

	if _, err := NewServices(cfg); err != nil {
		t.Fatalf("NewServices() error: %v", err)
	}
	if _, err := os.Stat(cfg.Checkpoint.Path); err != nil {
		t.Errorf("sqlite database not created at override path: %v", err)
	}
}

func TestNewServicesNotifierWiring(t *testing.T) {
	// Log only by default.
	cfg := config.Default()
	cfg.BaseDir = t.TempDir()
	services, err := NewServices(cfg)
	if err != nil {
		t.Fatalf("NewServices() error: %v", err)
	}
	if _, ok := services.Notifier.(*notify.MultiNotifier); ok {
		t.Error("no fan-out expected without outbound sinks configured")
	}

	// Slack joins the fan-out when configured.
	cfg = config.Default()
	cfg.BaseDir = t.TempDir()
	cfg.Slack.WebhookURL = "https://hooks.slack.com/services/T/B/x"
	services, err = NewServices(cfg)
	if err != nil {
		t.Fatalf("NewServices() slack error: %v", err)
	}
	if _, ok := services.Notifier.(*notify.MultiNotifier); !ok {
		t.Errorf("Notifier = %T, want *notify.MultiNotifier with slack configured", services.Notifier)
	}
}
