package graphfold

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/graphfold/graphfold"
	"github.com/graphfold/graphfold/pkg/config"
)

var (
	importBatchID string
	importWorkers int
)

var importCmd = &cobra.Command{
	Use:   "import <payload.json>",
	Short: "Resolve and import an extraction payload",
	Long: `Import reads an extraction payload produced by an upstream extraction
step, resolves every entity against the graph, and writes entities and
relationships. Ambiguous entities are held in the review queue instead of
being written. Interrupting with Ctrl-C stops cleanly at the next entity.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importBatchID, "batch-id", "", "override the payload's batch id")
	importCmd.Flags().IntVar(&importWorkers, "workers", 0, "entity workers (overrides configuration)")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	payload, err := graphfold.LoadPayloadFile(args[0])
	if err != nil {
		return err
	}
	if importBatchID != "" {
		payload.BatchID = importBatchID
	}

	client, err := openClient(func(cfg *config.Config) {
		if importWorkers > 0 {
			cfg.Import.Workers = importWorkers
		}
	})
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	stats, err := client.ImportBatch(ctx, payload)
	if err != nil {
		return err
	}

	fmt.Println(stats.Summary())
	if len(stats.Errors) > 0 {
		fmt.Printf("\n%d item(s) failed:\n", len(stats.Errors))
		for _, importErr := range stats.Errors {
			fmt.Printf("  - %s\n", importErr.Error())
		}
	}
	if stats.PendingReview > 0 {
		fmt.Printf("\n%d entity(ies) held for review. Run 'graphfold review -i' to decide.\n", stats.PendingReview)
	}
	return nil
}
