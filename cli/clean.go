package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smokejel/reqflow/artifact"
)

var (
	dryRunFlag   bool
	archivesFlag bool
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Apply retention policy to run artifacts",
	Long: `Apply the retention policy to stored run artifacts: old runs are
compressed into monthly archives, and runs and archives past their
retention window are deleted. Failed and suspended runs are kept.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "report actions without touching the disk")
	cleanCmd.Flags().BoolVar(&archivesFlag, "archives", false, "also expire old archives")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, _, err := setup()
	if err != nil {
		return err
	}

	mgr := artifact.NewLifecycleManager(cfg.BaseDir, artifact.DefaultRetentionConfig())

	result, err := mgr.Cleanup(dryRunFlag)
	if err != nil {
		return err
	}
	printCleanup("runs", result)

	if archivesFlag {
		archResult, err := mgr.CleanupArchives(dryRunFlag)
		if err != nil {
			return err
		}
		printCleanup("archives", archResult)
	}

	if usage, err := mgr.DiskUsage(); err == nil {
		fmt.Printf("\n%s %d runs (%d KB), %d archives (%d KB)\n",
			styleMuted.Render("disk usage:"),
			usage.RunCount, usage.ActiveSize/1024,
			usage.ArchiveCount, usage.ArchiveSize/1024)
	}
	return nil
}

func printCleanup(what string, result *artifact.CleanupResult) {
	fmt.Printf("%s archived %d, deleted %d, kept %d\n",
		styleTitle.Render(what+":"),
		len(result.Archived), len(result.Deleted), len(result.Kept))
	for _, e := range result.Errors {
		fmt.Println(styleError.Render("  " + e))
	}
}
