package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/memohai/doubtsolver/internal/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "doubtsolver",
		Short:         "Telegram bot answering NEET/JEE doubts with Gemini",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default $CONFIG_PATH, then config.toml)")
	root.AddCommand(
		newServeCommand(&configPath),
		newMigrateCommand(&configPath),
		newAllowlistCommand(&configPath),
		newVersionCommand(),
	)
	return root
}

// loadConfig reads .env, then the config file, then environment overrides.
func loadConfig(path string) (config.Config, error) {
	if err := config.LoadDotEnv(); err != nil {
		return config.Config{}, err
	}
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}
