package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/alphauslabs/verticalbuilder/internal/config"
)

// logger is the root logger, built before any subcommand runs.
var logger = slog.Default()

var rootCmd = &cobra.Command{
	Use:   "verticalbuilder",
	Short: "Vertical site build worker",
	Long: "-------------------------------------------------------------------\n" +
		"                       Vertical Builder\n" +
		"-------------------------------------------------------------------\n" +
		"Builds and publishes per-tenant static sites from content exports.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
		logger = config.LogFromEnv().NewLogger(os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.EnableCommandSorting = false

	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file loaded before the environment is read; missing is fine")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(receiptCmd)
}
