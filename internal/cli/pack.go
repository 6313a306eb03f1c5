package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"pav/internal/adapter/index"
	"pav/internal/adapter/packer"
	"pav/internal/port"
	"pav/internal/usecase"
)

var (
	packQuery     string
	packNamespace string
	packBudget    int
	packOutput    string
	packTopK      int
	packDiversity float64
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Pack retrieved evidence into a token budget",
	Long: `Retrieve candidates for a question and select a budget-respecting,
diversity-aware subset, printed as JSON with citation metadata.

Examples:
  pav pack -q "what accuracy does the model reach" -n paper
  pav pack -q "training setup" -b 2000 -o context.json`,
	RunE: runPack,
}

func init() {
	rootCmd.AddCommand(packCmd)
	packCmd.Flags().StringVarP(&packQuery, "query", "q", "", "question (required)")
	packCmd.Flags().StringVarP(&packNamespace, "namespace", "n", "", "document namespace (default: all documents)")
	packCmd.Flags().IntVarP(&packBudget, "budget", "b", 0, "token budget (default from config)")
	packCmd.Flags().StringVarP(&packOutput, "output", "o", "", "output file (default: stdout)")
	packCmd.Flags().IntVarP(&packTopK, "top-k", "k", 0, "candidate pool size (default from config)")
	packCmd.Flags().Float64VarP(&packDiversity, "diversity", "w", -1, "diversity weight in [0,1] (default from config)")
	packCmd.MarkFlagRequired("query")
}

func runPack(cmd *cobra.Command, args []string) error {
	asker, cleanup, err := buildAsker(nil)
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := GetConfig()
	budget := cfg.Pack.TokenBudget
	if packBudget > 0 {
		budget = packBudget
	}

	packed, err := asker.PackContext(packNamespace, packQuery, budget)
	if err != nil {
		return err
	}

	if len(packed.Snippets) == 0 {
		fmt.Fprintln(os.Stderr, "No relevant content found.")
	}

	output, err := json.MarshalIndent(packed, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}

	if packOutput != "" {
		if err := os.WriteFile(packOutput, output, 0644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Printf("Context packed to: %s\n", packOutput)
		fmt.Printf("  Snippets: %d\n", len(packed.Snippets))
		fmt.Printf("  Tokens:   %d / %d\n", packed.UsedTokens, packed.BudgetTokens)
	} else {
		fmt.Println(string(output))
	}

	return nil
}

// buildAsker wires retrieval and packing. model may be nil for pack-only use.
func buildAsker(model port.AnswerModel) (*usecase.Asker, func(), error) {
	cfg := GetConfig()
	rootDir := GetRootDir()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	idx, closeIdx, err := buildIndex(cfg, rootDir)
	if err != nil {
		return nil, nil, err
	}

	diversity := cfg.Pack.DiversityWeight
	if packDiversity >= 0 {
		diversity = packDiversity
	}
	p, err := packer.New(diversity)
	if err != nil {
		closeIdx()
		return nil, nil, err
	}

	topK := cfg.Retrieve.TopK
	if packTopK > 0 {
		topK = packTopK
	}

	var reranker port.Reranker
	if cfg.Retrieve.Rerank {
		reranker, err = index.NewPineconeReranker("", cfg.Retrieve.RerankAPIKeyEnv, cfg.Retrieve.RerankModel)
		if err != nil {
			closeIdx()
			return nil, nil, fmt.Errorf("failed to create reranker: %w", err)
		}
	}

	asker := usecase.NewAsker(embedder, idx, p, model, reranker, topK, cfg.Retrieve.Relevance, cfg.Retrieve.MinScore)
	return asker, closeIdx, nil
}
