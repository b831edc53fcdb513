package reqflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	llm "github.com/randalmurphal/llmkit/claude"

	"github.com/smokejel/reqflow/artifact"
	"github.com/smokejel/reqflow/budget"
	"github.com/smokejel/reqflow/checkpoint"
	"github.com/smokejel/reqflow/config"
	"github.com/smokejel/reqflow/document"
	"github.com/smokejel/reqflow/executor"
	"github.com/smokejel/reqflow/notify"
	"github.com/smokejel/reqflow/prompt"
	"github.com/smokejel/reqflow/review"
)

// =============================================================================
// Services
// =============================================================================

// Services bundles everything a run needs from its environment. Fields
// left nil are simply not injected; nodes degrade accordingly.
type Services struct {
	LLM         llm.Client
	LLMFactory  LLMFactory
	StageModels map[string]string
	Executor    *executor.Executor
	Checkpoints checkpoint.Store
	Tracker     budget.Tracker
	Notifier    notify.Notifier
	Review      review.Channel
	Artifacts   *artifact.Manager
	Prompts     *prompt.Loader
	Documents   document.Source
}

// InjectAll adds all configured services to the context.
func (s *Services) InjectAll(ctx context.Context) context.Context {
	if s.LLM != nil {
		ctx = WithLLMClient(ctx, s.LLM)
	}
	if s.LLMFactory != nil {
		ctx = WithLLMFactory(ctx, s.LLMFactory)
	}
	if len(s.StageModels) > 0 {
		ctx = WithStageModels(ctx, s.StageModels)
	}
	if s.Executor != nil {
		ctx = WithExecutor(ctx, s.Executor)
	}
	if s.Checkpoints != nil {
		ctx = WithCheckpointStore(ctx, s.Checkpoints)
	}
	if s.Tracker != nil {
		ctx = WithTracker(ctx, s.Tracker)
	}
	if s.Notifier != nil {
		ctx = notify.WithNotifier(ctx, s.Notifier)
	}
	if s.Review != nil {
		ctx = review.WithChannel(ctx, s.Review)
	}
	if s.Artifacts != nil {
		ctx = WithArtifacts(ctx, s.Artifacts)
	}
	if s.Prompts != nil {
		ctx = WithPrompts(ctx, s.Prompts)
	}
	if s.Documents != nil {
		ctx = WithDocumentSource(ctx, s.Documents)
	}
	return ctx
}

// NewServices builds the standard production service set from
// configuration: file-backed checkpoints and artifacts under the base
// directory, a budget meter with the configured ceiling, a CLI review
// channel, and a per-model CLI client factory.
func NewServices(cfg *config.Config) (*Services, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	checkpoints, err := newCheckpointStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("checkpoint store: %w", err)
	}

	notifiers := []notify.Notifier{notify.NewLogNotifier(nil)}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, notify.NewWebhookNotifier(cfg.Webhook.URL, cfg.Webhook.Headers))
	}
	if cfg.Slack.WebhookURL != "" {
		var slackOpts []notify.SlackOption
		if cfg.Slack.Channel != "" {
			slackOpts = append(slackOpts, notify.WithSlackChannel(cfg.Slack.Channel))
		}
		if cfg.Slack.Username != "" {
			slackOpts = append(slackOpts, notify.WithSlackUsername(cfg.Slack.Username))
		}
		notifiers = append(notifiers, notify.NewSlackNotifier(cfg.Slack.WebhookURL, slackOpts...))
	}
	var notifier notify.Notifier = notifiers[0]
	if len(notifiers) > 1 {
		notifier = notify.NewMultiNotifier(notifiers...)
	}

	meter := budget.NewMeter(cfg.BudgetCeiling)

	exec := executor.New(
		executor.WithPolicy(executor.BackoffPolicy{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay.Std(),
			Multiplier:   cfg.Retry.Multiplier,
			MaxDelay:     cfg.Retry.MaxDelay.Std(),
		}),
		executor.WithTracker(meter),
	)

	workdir := cfg.LLM.Workdir
	if workdir == "" {
		workdir, _ = os.Getwd()
	}
	factory := func(model string) llm.Client {
		return llm.NewClaudeCLI(
			llm.WithModel(model),
			llm.WithWorkdir(workdir),
		)
	}

	return &Services{
		LLMFactory:  factory,
		StageModels: cfg.Models,
		Executor:    exec,
		Checkpoints: checkpoints,
		Tracker:     meter,
		Notifier:    notifier,
		Review:      review.NewCLIChannel(os.Stdin, os.Stdout),
		Artifacts:   artifact.NewManager(cfg.BaseDir),
		Prompts:     prompt.NewLoader("."),
		Documents:   document.NewFileSource(),
	}, nil
}

// newCheckpointStore builds the configured checkpoint backend. File is the
// default; sqlite keeps every run in one database, which suits hosting many
// concurrent runs.
func newCheckpointStore(cfg *config.Config) (checkpoint.Store, error) {
	path := cfg.Checkpoint.Path
	switch cfg.Checkpoint.Backend {
	case "sqlite":
		if path == "" {
			path = filepath.Join(cfg.BaseDir, "checkpoints.db")
		}
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
		return checkpoint.NewSQLiteStore(path)
	case "", "file":
		if path == "" {
			path = filepath.Join(cfg.BaseDir, "checkpoints")
		}
		return checkpoint.NewFileStore(path)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Checkpoint.Backend)
	}
}

// NewRunState builds a fresh run state with the configured pipeline
// parameters applied.
func NewRunState(cfg *config.Config, subsystem, sourcePath string) State {
	if cfg == nil {
		cfg = config.Default()
	}
	return NewState(subsystem).
		WithSourcePath(sourcePath).
		WithQualityThreshold(cfg.QualityThreshold).
		WithMaxIterations(cfg.MaxIterations).
		WithReviewBeforeDecompose(cfg.ReviewBeforeDecompose).
		WithWeights(Weights{
			Completeness: cfg.Weights.Completeness,
			Clarity:      cfg.Weights.Clarity,
			Testability:  cfg.Weights.Testability,
			Traceability: cfg.Weights.Traceability,
		})
}
