package main

import (
	"fmt"
	"os"

	"pagegen-backend/internal/config"
	"pagegen-backend/pkg/logger"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "pagegen",
	Short: "Generate Next.js pages from chat prompts with a live preview",
	Long: `pagegen keeps a chat session with a language model that writes a single
Next.js page component, sanitizes each reply and boots it in a preview sandbox.
Conversations are stored per project.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs/config.yaml", "path to the config file")
	rootCmd.AddCommand(serveCmd, projectsCmd)
}

// loadConfig reads the config and initialises logging from it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, nil
}
