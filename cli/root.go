package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/smokejel/reqflow"
	"github.com/smokejel/reqflow/config"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "reqflow",
	Short: "Decompose system requirements into subsystem requirements",
	Long: `reqflow runs an LLM-driven pipeline that extracts system-level
requirements from a source document, analyzes which apply to a target
subsystem, decomposes them into subsystem requirements, and validates the
result against a quality gate with iterative refinement.

Workflow:
  reqflow run spec.md --subsystem "Power Management"
  reqflow list
  reqflow status <run-id>
  reqflow review <run-id> --approve
  reqflow resume <run-id>`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Optional .env for local credentials and overrides.
		_ = godotenv.Load()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// runContext returns a context cancelled by SIGINT/SIGTERM so an
// interrupted run checkpoints as cancelled instead of dying mid-stage.
func runContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// setup loads configuration and builds the service context.
func setup() (*config.Config, *reqflow.Services, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	services, err := reqflow.NewServices(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, services, nil
}
