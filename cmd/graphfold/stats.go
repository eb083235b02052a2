package graphfold

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show node and relationship counts",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	stats, err := client.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("nodes: %d\n", stats.NodeCount)
	for _, label := range sortedKeys(stats.NodesByLabel) {
		fmt.Printf("  %-24s %d\n", label, stats.NodesByLabel[label])
	}
	fmt.Printf("relationships: %d\n", stats.RelationshipCount)
	for _, relType := range sortedKeys(stats.RelationshipsByType) {
		fmt.Printf("  %-24s %d\n", relType, stats.RelationshipsByType[relType])
	}

	pending, err := client.PendingReviews()
	if err != nil {
		return err
	}
	fmt.Printf("pending reviews: %d\n", len(pending))
	return nil
}

func sortedKeys(m map[string]int64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
