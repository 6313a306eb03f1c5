package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"pav/internal/usecase"
)

var (
	evalFile    string
	evalOutput  string
	evalBudgets []int
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Answer a question set across a sweep of token budgets",
	Long: `Read questions from a CSV with columns namespace,question, answer each
one at every budget, and write the results as CSV. Useful for comparing how
answer quality degrades as the context budget shrinks.

Examples:
  pav eval -f questions.csv
  pav eval -f questions.csv --budgets 1000,3000,6000 -o results.csv`,
	RunE: runEval,
}

func init() {
	rootCmd.AddCommand(evalCmd)
	evalCmd.Flags().StringVarP(&evalFile, "file", "f", "", "question CSV (required)")
	evalCmd.Flags().StringVarP(&evalOutput, "output", "o", "", "output CSV (default: stdout)")
	evalCmd.Flags().IntSliceVar(&evalBudgets, "budgets", nil, "token budgets to sweep (default from config)")
	evalCmd.MarkFlagRequired("file")
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	rows, err := usecase.ReadQuestions(evalFile)
	if err != nil {
		return err
	}

	model, err := buildModel(cfg)
	if err != nil {
		return fmt.Errorf("failed to create answer model: %w", err)
	}

	asker, cleanup, err := buildAsker(model)
	if err != nil {
		return err
	}
	defer cleanup()

	budgets := evalBudgets
	if len(budgets) == 0 {
		budgets = []int{cfg.Pack.TokenBudget}
	}

	out := os.Stdout
	showBar := false
	if evalOutput != "" {
		f, err := os.Create(evalOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
		showBar = true
	}

	evaluator := usecase.NewEvaluator(asker, showBar)
	if err := evaluator.Run(rows, budgets, out); err != nil {
		return err
	}

	if evalOutput != "" {
		fmt.Printf("Wrote %d answers to %s\n", len(rows)*len(budgets), evalOutput)
	}
	return nil
}
