package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var receiptCmd = &cobra.Command{
	Use:   "receipt <orgId> <jobId>",
	Short: "Show a job's receipt and status history",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := newWorkerClient(cmd)

		view, err := client.GetReceipt(context.Background(), args[0], args[1])
		if err != nil {
			return fmt.Errorf("failed to get receipt: %w", err)
		}

		out, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	receiptCmd.Flags().String("worker", "", "Worker URL (or VERTICALBUILDER_URL env var)")
}
