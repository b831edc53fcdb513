package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/smokejel/reqflow"
	"github.com/smokejel/reqflow/review"
)

var (
	approveFlag  bool
	feedbackFlag string
)

var reviewCmd = &cobra.Command{
	Use:   "review <run-id>",
	Short: "Submit a review decision for a suspended run",
	Long: `Submit a review decision for a run suspended on human review.

With no flags the decision is read interactively. Otherwise use --approve
or --revise with the feedback text.

Examples:
  reqflow review 20260830_141502_power_management --approve
  reqflow review 20260830_141502_power_management --revise "split POWER-3 into separate requirements"`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	reviewCmd.Flags().BoolVar(&approveFlag, "approve", false, "approve and continue the run")
	reviewCmd.Flags().StringVar(&feedbackFlag, "revise", "", "request revision with this feedback")
	rootCmd.AddCommand(reviewCmd)
}

func runReview(cmd *cobra.Command, args []string) error {
	_, services, err := setup()
	if err != nil {
		return err
	}

	var decision review.Decision
	switch {
	case approveFlag && feedbackFlag != "":
		return fmt.Errorf("--approve and --revise are mutually exclusive")
	case approveFlag:
		decision = review.Decision{Approved: true}
	case feedbackFlag != "":
		decision = review.Decision{Approved: false, Feedback: feedbackFlag}
	default:
		decision, err = promptDecision()
		if err != nil {
			return err
		}
	}

	ctx, cancel := runContext()
	defer cancel()
	ctx = services.InjectAll(ctx)

	machine := reqflow.NewMachine()
	result, err := machine.Submit(ctx, args[0], decision)
	if err != nil {
		return err
	}

	printOutcome(result)
	return nil
}

// promptDecision reads a decision line from stdin.
func promptDecision() (review.Decision, error) {
	fmt.Print("Decision [approve / revise: <feedback>]: ")
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return review.Decision{}, err
	}
	return review.ParseDecision(strings.TrimSpace(line))
}
