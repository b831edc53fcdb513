package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokejel/reqflow"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted run from its last checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE:  runResume,
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}

func runResume(cmd *cobra.Command, args []string) error {
	_, services, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := runContext()
	defer cancel()
	ctx = services.InjectAll(ctx)

	machine := reqflow.NewMachine()
	result, err := machine.Resume(ctx, args[0])
	if errors.Is(err, reqflow.ErrAwaitingDecision) {
		return fmt.Errorf("run %s is awaiting review; use: reqflow review %s", args[0], args[0])
	}
	if err != nil {
		return err
	}

	printOutcome(result)
	return nil
}
