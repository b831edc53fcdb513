package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokejel/reqflow"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List checkpointed runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	_, services, err := setup()
	if err != nil {
		return err
	}

	ctx, cancel := runContext()
	defer cancel()

	records, err := services.Checkpoints.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println(styleMuted.Render("no runs found"))
		return nil
	}

	for _, rec := range records {
		fmt.Printf("%-42s %-22s %-12s %s\n",
			rec.RunID,
			styleStatus(reqflow.RunStatus(rec.Status)),
			rec.Stage,
			styleMuted.Render(rec.UpdatedAt.Format("2006-01-02 15:04:05")))
	}
	return nil
}
