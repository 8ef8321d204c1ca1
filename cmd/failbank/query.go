package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/failbank/internal/memory"
)

var (
	// similar command flags
	simThreshold float64

	// suggest command flags
	suggestCategory string
)

func init() {
	rootCmd.AddCommand(categorizeCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(suggestCmd)

	similarCmd.Flags().Float64Var(&simThreshold, "threshold", 0, "similarity threshold override (0 uses config)")
	suggestCmd.Flags().StringVar(&suggestCategory, "category", "", "category override (derived from the message when empty)")
}

var categorizeCmd = &cobra.Command{
	Use:   "categorize <error-message>",
	Short: "Classify an error message without recording it",
	Long: `Classify an error message into a category and severity using learned
patterns first, then the built-in heuristics.

Examples:
  failbank categorize "Duplicate element found: Get_Records"`,
	Args: cobra.ExactArgs(1),
	RunE: runCategorize,
}

var similarCmd = &cobra.Command{
	Use:   "similar <error-message>",
	Short: "Find historically similar failures",
	Long: `Score the message against every recorded failure and list the closest
matches above the similarity threshold.

Examples:
  failbank similar "Duplicate element found: Get_Accounts"
  failbank similar --threshold 0.5 "Duplicate element found: Get_Accounts"`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <error-message>",
	Short: "Suggest proven fixes for an error",
	Long: `List fixes that previously resolved failures in this category or with
similar messages, best first.

Examples:
  failbank suggest "Duplicate element found: Get_Accounts"`,
	Args: cobra.ExactArgs(1),
	RunE: runSuggest,
}

func runCategorize(cmd *cobra.Command, args []string) error {
	return runWithService(func(ctx context.Context, svc memory.Service) error {
		res := svc.Categorize(ctx, &memory.CategorizeRequest{ErrorMessage: args[0]})
		if err := emit(res); err != nil {
			return err
		}
		if !outputJSON {
			fmt.Printf("category: %s\nseverity: %s\n", res.Category, res.Severity)
		}
		return nil
	})
}

func runSimilar(cmd *cobra.Command, args []string) error {
	return runWithService(func(ctx context.Context, svc memory.Service) error {
		res := svc.FindSimilar(ctx, &memory.FindSimilarRequest{
			ErrorMessage: args[0],
			Threshold:    simThreshold,
		})
		if err := emit(res); err != nil {
			return err
		}
		if outputJSON || res.Similar == nil {
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SCORE\tID\tCATEGORY\tERROR")
		for _, m := range res.Similar.Matches {
			fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\n", m.Score, m.ID, m.Category, m.ErrorMessage)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("%d total matches\n", res.Similar.TotalMatches)
		return nil
	})
}

func runSuggest(cmd *cobra.Command, args []string) error {
	return runWithService(func(ctx context.Context, svc memory.Service) error {
		res := svc.SuggestSolutions(ctx, &memory.SuggestSolutionsRequest{
			ErrorMessage: args[0],
			Category:     suggestCategory,
		})
		if err := emit(res); err != nil {
			return err
		}
		if !outputJSON {
			if len(res.Suggestions) == 0 {
				fmt.Println("no suggestions")
				return nil
			}
			for i, s := range res.Suggestions {
				fmt.Printf("%d. %s\n", i+1, s)
			}
		}
		return nil
	})
}
