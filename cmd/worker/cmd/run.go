package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/alphauslabs/verticalbuilder/internal/config"
	"github.com/alphauslabs/verticalbuilder/internal/job"
	"github.com/alphauslabs/verticalbuilder/internal/receipt"
)

var runCmd = &cobra.Command{
	Use:   "run <job.json>",
	Short: "Build one job in the foreground",
	Long: "verticalbuilder run <job.json>\n\n" +
		"Reads a job description, builds it synchronously with the same pipeline\n" +
		"the worker uses, and prints the final receipt. Exits non-zero when the\n" +
		"build fails.",
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		cfg, err := config.LoadFromEnv()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		d, err := job.Decode(data)
		if err != nil {
			return err
		}
		if err := (job.Intake{Env: cfg.Env, HostingProject: cfg.HostingProject}).Validate(d); err != nil {
			return err
		}

		ctx := context.Background()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		a.orchestrator.Run(ctx, d)

		rec, err := a.receipts.Get(ctx, d.OrgID, d.JobID)
		if err != nil {
			return fmt.Errorf("build finished but its receipt could not be read: %w", err)
		}
		out, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))

		if rec.Status != receipt.StatusDeployed {
			msg := "unknown error"
			if rec.Error != nil {
				msg = *rec.Error
			}
			return fmt.Errorf("build %s %s: %s", d.JobID, rec.Status, msg)
		}
		return nil
	},
}
