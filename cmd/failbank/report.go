package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/failbank/internal/memory"
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(patternsCmd)
	rootCmd.AddCommand(statsCmd)
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <failure-id>",
	Short: "Analyze a recorded failure",
	Long: `Combine everything known about one failure: its category and severity,
suggested fixes, similar past failures, and the learned patterns its message
matches. An unknown id yields a neutral "unknown" result.

Examples:
  failbank analyze fail_a1b2c3d4e5f6`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "List learned failure patterns",
	RunE:  runPatterns,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show failure statistics",
	RunE:  runStats,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	return runWithService(func(ctx context.Context, svc memory.Service) error {
		res := svc.Analyze(ctx, &memory.AnalyzeRequest{FailureID: args[0]})
		if err := emit(res); err != nil {
			return err
		}
		if outputJSON || res.Analysis == nil {
			return nil
		}

		a := res.Analysis
		fmt.Printf("failure: %s\ncategory: %s\nseverity: %s\n", a.FailureID, a.Category, a.Severity)
		if len(a.Suggestions) > 0 {
			fmt.Println("suggestions:")
			for i, s := range a.Suggestions {
				fmt.Printf("  %d. %s\n", i+1, s)
			}
		}
		if a.Similar != nil && len(a.Similar.Matches) > 0 {
			fmt.Printf("similar failures (%d total):\n", a.Similar.TotalMatches)
			for _, m := range a.Similar.Matches {
				fmt.Printf("  %.2f %s %s\n", m.Score, m.ID, m.ErrorMessage)
			}
		}
		if len(a.MatchedPatterns) > 0 {
			fmt.Println("matched patterns:")
			for _, p := range a.MatchedPatterns {
				fmt.Printf("  %s (%s) success rate %.2f\n", p.PatternID, p.Category, p.SuccessRate)
			}
		}
		return nil
	})
}

func runPatterns(cmd *cobra.Command, args []string) error {
	return runWithService(func(ctx context.Context, svc memory.Service) error {
		res := svc.Patterns(ctx)
		if err := emit(res); err != nil {
			return err
		}
		if outputJSON {
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCATEGORY\tRATE\tFIXES\tEXAMPLES\tPATTERN")
		for _, p := range res.Patterns {
			fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%d\t%s\n",
				p.PatternID, p.Category, p.SuccessRate, p.FixCount, p.ExampleCount, p.ErrorPattern)
		}
		return w.Flush()
	})
}

func runStats(cmd *cobra.Command, args []string) error {
	return runWithService(func(ctx context.Context, svc memory.Service) error {
		res := svc.Stats(ctx)
		if err := emit(res); err != nil {
			return err
		}
		if outputJSON || res.Stats == nil {
			return nil
		}

		fmt.Printf("total failures: %d\n", res.Stats.TotalFailures)

		categories := make([]string, 0, len(res.Stats.ByCategory))
		for c := range res.Stats.ByCategory {
			categories = append(categories, c)
		}
		sort.Strings(categories)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "CATEGORY\tCOUNT")
		for _, c := range categories {
			fmt.Fprintf(w, "%s\t%d\n", c, res.Stats.ByCategory[c])
		}
		return w.Flush()
	})
}
