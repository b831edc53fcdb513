package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokejel/reqflow"
)

var (
	subsystemFlag    string
	thresholdFlag    float64
	maxIterFlag      int
	reviewFirstFlag  bool
	budgetFlag       float64
	noInteractiveRun bool
)

var runCmd = &cobra.Command{
	Use:   "run <source-document>",
	Short: "Start a decomposition run",
	Long: `Start a decomposition run against a source requirements document.

The run proceeds through extract, analyze, decompose, and validate stages,
looping on decompose/validate until the quality gate passes or the
iteration budget is exhausted. Runs that need a human decision either
prompt interactively or suspend for a later 'reqflow review'.

Examples:
  reqflow run spec.md --subsystem "Power Management"
  reqflow run spec.md -s Thermal --threshold 0.85 --max-iterations 5
  reqflow run spec.md -s Comms --review-first --no-interactive`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&subsystemFlag, "subsystem", "s", "", "target subsystem name (required)")
	runCmd.Flags().Float64Var(&thresholdFlag, "threshold", 0, "quality gate threshold override")
	runCmd.Flags().IntVar(&maxIterFlag, "max-iterations", 0, "refinement iteration cap override")
	runCmd.Flags().BoolVar(&reviewFirstFlag, "review-first", false, "require human review of the analysis before decomposing")
	runCmd.Flags().Float64Var(&budgetFlag, "budget", 0, "spend ceiling in USD (0 = unlimited)")
	runCmd.Flags().BoolVar(&noInteractiveRun, "no-interactive", false, "suspend on human review instead of prompting")
	runCmd.MarkFlagRequired("subsystem")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, services, err := setup()
	if err != nil {
		return err
	}

	if thresholdFlag > 0 {
		cfg.QualityThreshold = thresholdFlag
	}
	if maxIterFlag > 0 {
		cfg.MaxIterations = maxIterFlag
	}
	if reviewFirstFlag {
		cfg.ReviewBeforeDecompose = true
	}
	if budgetFlag > 0 {
		cfg.BudgetCeiling = budgetFlag
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if noInteractiveRun {
		services.Review = nil
	}

	ctx, cancel := runContext()
	defer cancel()
	ctx = services.InjectAll(ctx)

	state := reqflow.NewRunState(cfg, subsystemFlag, args[0])

	fmt.Printf("%s %s\n", styleTitle.Render("Starting run"), state.RunID)

	machine := reqflow.NewMachine()
	result, err := machine.Run(ctx, state)
	printOutcome(result)
	return err
}

// printOutcome renders the end-of-run summary.
func printOutcome(state reqflow.State) {
	fmt.Printf("\n%s  %s\n", styleStatus(state.Status), state.Summary())

	switch state.Status {
	case reqflow.StatusAwaitingReview:
		fmt.Println(styleMuted.Render(
			"run is suspended; decide with: reqflow review " + state.RunID))
	case reqflow.StatusCompleted:
		if state.OutputDocumentPath != "" {
			fmt.Println(styleMuted.Render("document: " + state.OutputDocumentPath))
		}
	case reqflow.StatusFailed:
		for _, e := range state.Errors {
			fmt.Println(styleError.Render("  " + e))
		}
	}
}
