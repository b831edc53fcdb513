package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokejel/reqflow"
)

var statusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show the state of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	_, services, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := runContext()
	defer cancel()

	rec, err := services.Checkpoints.Load(ctx, args[0])
	if err != nil {
		return err
	}
	state, err := reqflow.StateFromRecord(rec)
	if err != nil {
		return err
	}

	fmt.Printf("%s %s\n\n", styleTitle.Render("Run"), state.RunID)
	fmt.Printf("  Status:     %s\n", styleStatus(state.Status))
	fmt.Printf("  Subsystem:  %s\n", state.Subsystem)
	fmt.Printf("  Stage:      %s\n", state.CurrentStage)
	fmt.Printf("  Iteration:  %d/%d\n", state.IterationCount, state.MaxIterations)
	fmt.Printf("  Extracted:  %d requirements\n", len(state.ExtractedRequirements))
	fmt.Printf("  Decomposed: %d requirements\n", len(state.DecomposedRequirements))
	if state.QualityMetrics != nil {
		fmt.Printf("  Quality:    %.2f (threshold %.2f)\n",
			state.QualityMetrics.OverallScore, state.QualityThreshold)
	}
	fmt.Printf("  Tokens:     %d in / %d out\n", state.TokensIn, state.TokensOut)
	fmt.Printf("  Cost:       $%.4f\n", state.TotalCost)
	if state.FallbackCount > 0 {
		fmt.Printf("  Fallbacks:  %d\n", state.FallbackCount)
	}
	if state.OutputDocumentPath != "" {
		fmt.Printf("  Document:   %s\n", state.OutputDocumentPath)
	}
	for _, e := range state.Errors {
		fmt.Printf("  %s\n", styleError.Render(e))
	}

	if files, err := services.Artifacts.List(state.RunID); err == nil && len(files) > 0 {
		fmt.Printf("\n  Artifacts: %s\n", styleMuted.Render(fmt.Sprint(files)))
	}

	return nil
}
