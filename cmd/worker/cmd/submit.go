package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/spf13/cobra"

	"github.com/alphauslabs/verticalbuilder/cmd/worker/service"
	"github.com/alphauslabs/verticalbuilder/internal/receipt"
)

const defaultWorkerURL = "http://localhost:8081"

// newWorkerClient builds a BuildService client from --worker or VERTICALBUILDER_URL.
func newWorkerClient(cmd *cobra.Command) (*service.Client, string) {
	url, _ := cmd.Flags().GetString("worker")
	if url == "" {
		url = os.Getenv("VERTICALBUILDER_URL")
	}
	if url == "" {
		url = defaultWorkerURL
	}
	return service.NewClient(&http.Client{Timeout: 30 * time.Second}, url), url
}

var submitCmd = &cobra.Command{
	Use:   "submit <job.json>",
	Short: "Submit a build job to a worker",
	Long:  "verticalbuilder submit <job.json> [--wait]\n\nReads a job description from a JSON file and submits it.\nUse --wait to stream receipt status changes until the job finishes.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wait, _ := cmd.Flags().GetBool("wait")

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}

		var body map[string]any
		if err := json.Unmarshal(data, &body); err != nil {
			return fmt.Errorf("invalid JSON in %s: %w", args[0], err)
		}
		orgID, _ := body["orgId"].(string)

		client, url := newWorkerClient(cmd)
		fmt.Printf("Worker URL: %s\n", url)
		fmt.Println("Submitting job...")

		ctx := context.Background()
		jobID, err := client.SubmitBuild(ctx, data)
		if err != nil {
			return fmt.Errorf("submit failed: %w", err)
		}

		fmt.Println("✅ Job accepted!")
		fmt.Printf("Job ID: %s\n", jobID)

		if !wait {
			return nil
		}
		return watchReceipt(ctx, client, orgID, jobID)
	},
}

// watchReceipt polls the job's receipt and prints each status change until
// the job reaches a terminal status or the user interrupts.
func watchReceipt(ctx context.Context, client *service.Client, orgID, jobID string) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println()
	fmt.Println("Streaming status...")
	fmt.Println("============================================")

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	var last receipt.Status
	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			return nil
		case <-ticker.C:
			view, err := client.GetReceipt(ctx, orgID, jobID)
			if connect.CodeOf(err) == connect.CodeNotFound {
				continue
			}
			if err != nil {
				fmt.Printf("  [%s]  polling error: %v\n", time.Now().Format("15:04:05"), err)
				continue
			}

			status := view.Receipt.Status
			if status != last {
				if last == "" {
					fmt.Printf("  [%s]  %s\n", time.Now().Format("15:04:05"), status)
				} else {
					fmt.Printf("  [%s]  %s → %s\n", time.Now().Format("15:04:05"), last, status)
				}
				last = status
			}
			if status.Terminal() {
				fmt.Println("============================================")
				if view.Receipt.Error != nil {
					return fmt.Errorf("build %s failed: %s", jobID, *view.Receipt.Error)
				}
				fmt.Println("Done!")
				return nil
			}
		}
	}
}

func init() {
	submitCmd.Flags().String("worker", "", "Worker URL (or VERTICALBUILDER_URL env var)")
	submitCmd.Flags().Bool("wait", false, "Stream status changes until the job completes")
}
