package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/failbank/internal/memory"
)

var (
	// record command flags
	recFailureType     string
	recContentFile     string
	recComponentErrors []string

	// fix command flags
	fixSuccessful bool
)

func init() {
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(fixCmd)

	recordCmd.Flags().StringVar(&recFailureType, "type", "deployment", "failure type")
	recordCmd.Flags().StringVar(&recContentFile, "content", "", "artifact file to hash for linkage (- for stdin)")
	recordCmd.Flags().StringArrayVar(&recComponentErrors, "component-error", nil, "component-level sub-error (repeatable)")

	fixCmd.Flags().BoolVar(&fixSuccessful, "successful", false, "whether the fix resolved the failure")
}

var recordCmd = &cobra.Command{
	Use:   "record <error-message>",
	Short: "Record a failure",
	Long: `Record a failure occurrence. The message is classified into a category
and severity, and the failure becomes available for similarity lookups.

Examples:
  # Record a deployment failure
  failbank record "Duplicate element found: Get_Records"

  # Link the failure to the artifact that produced it
  failbank record --content flow.xml "Field AccountId not found"

  # Attach component-level sub-errors
  failbank record --component-error "step 3 invalid" "deployment failed"`,
	Args: cobra.ExactArgs(1),
	RunE: runRecord,
}

var fixCmd = &cobra.Command{
	Use:   "fix <failure-id> <attempted-fix>",
	Short: "Record a fix outcome for a failure",
	Long: `Record the outcome of an attempted fix. A successful fix feeds the
pattern learner, making its solution available for future occurrences of
similarly-worded errors. The outcome for a failure can be set only once.

Examples:
  # A fix that worked
  failbank fix fail_a1b2c3d4e5f6 "Renamed duplicate element" --successful

  # A fix that did not
  failbank fix fail_a1b2c3d4e5f6 "Bumped API version"`,
	Args: cobra.ExactArgs(2),
	RunE: runFix,
}

func runRecord(cmd *cobra.Command, args []string) error {
	content, err := readContent(recContentFile)
	if err != nil {
		return err
	}

	return runWithService(func(ctx context.Context, svc memory.Service) error {
		res := svc.RecordFailure(ctx, &memory.RecordFailureRequest{
			FailureType:     recFailureType,
			ErrorMessage:    args[0],
			Content:         content,
			ComponentErrors: recComponentErrors,
		})
		if err := emit(res); err != nil {
			return err
		}
		if !outputJSON {
			fmt.Printf("recorded %s\ncategory: %s\nseverity: %s\n", res.FailureID, res.Category, res.Severity)
		}
		return nil
	})
}

func runFix(cmd *cobra.Command, args []string) error {
	return runWithService(func(ctx context.Context, svc memory.Service) error {
		res := svc.RecordFixOutcome(ctx, &memory.FixOutcomeRequest{
			FailureID:    args[0],
			AttemptedFix: args[1],
			Successful:   fixSuccessful,
		})
		if err := emit(res); err != nil {
			return err
		}
		if !outputJSON {
			fmt.Println(res.Message)
			for _, p := range res.Patterns {
				fmt.Printf("pattern %s (%s) success rate %.2f\n", p.PatternID, p.Category, p.SuccessRate)
			}
		}
		return nil
	})
}

// readContent loads the optional artifact content from a file or stdin.
func readContent(path string) (string, error) {
	if path == "" {
		return "", nil
	}
	if path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read from stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read content file %s: %w", path, err)
	}
	return string(data), nil
}
