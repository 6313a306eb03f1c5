package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	askQuery     string
	askNamespace string
	askBudget    int
	askJSON      bool
	askShowCtx   bool
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Answer a question from indexed documents",
	Long: `Retrieve evidence for a question, pack it into the token budget, and
answer strictly from the packed evidence. When the evidence does not support
an answer the model replies "Insufficient evidence".

Examples:
  pav ask -q "what accuracy does the model reach" -n paper
  pav ask -q "compare table 2 and figure 3" -n paper -b 2000
  pav ask -q "who are the authors" --json`,
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuery, "query", "q", "", "question (required)")
	askCmd.Flags().StringVarP(&askNamespace, "namespace", "n", "", "document namespace (default: all documents)")
	askCmd.Flags().IntVarP(&askBudget, "budget", "b", 0, "token budget (default from config)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the answer as JSON")
	askCmd.Flags().BoolVar(&askShowCtx, "show-context", false, "also print the packed evidence")
	askCmd.MarkFlagRequired("query")
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	model, err := buildModel(cfg)
	if err != nil {
		return fmt.Errorf("failed to create answer model: %w", err)
	}

	asker, cleanup, err := buildAsker(model)
	if err != nil {
		return err
	}
	defer cleanup()

	budget := cfg.Pack.TokenBudget
	if askBudget > 0 {
		budget = askBudget
	}

	answer, packed, err := asker.Ask(askNamespace, askQuery, budget)
	if err != nil {
		return err
	}

	if askJSON {
		output, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal output: %w", err)
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(answer.Text)
	fmt.Fprintf(os.Stderr, "\n[%d snippets, %d/%d tokens]\n",
		answer.Snippets, answer.UsedTokens, answer.BudgetTokens)

	if askShowCtx {
		fmt.Fprintln(os.Stderr, "\nPacked evidence:")
		for _, s := range packed.Snippets {
			fmt.Fprintf(os.Stderr, "  %-28s %-5s p%-3d rel=%.3f tok=%d\n",
				s.ID, s.Kind, s.Page, s.Relevance, s.Tokens)
		}
	}

	return nil
}
