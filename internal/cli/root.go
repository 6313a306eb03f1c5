package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"pav/config"
)

var (
	cfgFile string
	cfg     *config.Config
	rootDir string
)

var rootCmd = &cobra.Command{
	Use:   "pav",
	Short: "PDF answering with vision - ingest documents and ask budgeted questions",
	Long: `pav partitions PDFs into pages, figures and tables, turns figures and
tables into searchable narratives, and answers questions from a token-budgeted,
diversity-aware selection of the retrieved evidence.

Example usage:
  pav ingest ./papers                  # Partition, narrate and index PDFs
  pav ask -q "what accuracy?" -n paper # Answer from one document
  pav pack -q "training setup"         # Show the packed context as JSON
  pav eval -f questions.csv            # Sweep budgets over a question set`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		// API keys commonly live in a local .env during development.
		godotenv.Load()

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./pav.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
