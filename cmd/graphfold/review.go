package graphfold

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/graphfold/graphfold"
	"github.com/graphfold/graphfold/pkg/taxonomy"
	"github.com/graphfold/graphfold/pkg/types"
)

var (
	reviewAll         bool
	reviewInteractive bool
	reviewNotes       string
	reviewerName      string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "List or decide pending reviews",
	Long: `Review lists the entities held back as ambiguous. With --interactive it
walks through each pending record, shows the existing node and the held
entity side by side, and applies the decision you type.`,
	RunE: runReview,
}

var reviewApplyCmd = &cobra.Command{
	Use:   "apply <id> <merge|separate>",
	Short: "Apply a decision to one pending review",
	Args:  cobra.ExactArgs(2),
	RunE:  runReviewApply,
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewApplyCmd)

	reviewCmd.Flags().BoolVar(&reviewAll, "all", false, "include completed records")
	reviewCmd.Flags().BoolVarP(&reviewInteractive, "interactive", "i", false, "decide records one by one")
	reviewCmd.PersistentFlags().StringVar(&reviewNotes, "notes", "", "reviewer notes to attach")
	reviewCmd.PersistentFlags().StringVar(&reviewerName, "reviewer", "", "reviewer name (default $USER)")
}

func runReview(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	if reviewInteractive {
		return runInteractive(ctx, client)
	}

	records, err := listRecords(client)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no review records")
		return nil
	}

	fmt.Printf("%-36s  %-10s  %-6s  %-10s  %s\n", "ID", "TYPE", "SCORE", "STATUS", "ENTITY")
	for _, record := range records {
		fmt.Printf("%-36s  %-10s  %.2f    %-10s  %s\n",
			record.ID,
			record.EntityType,
			record.ConfidenceScore,
			string(record.Status),
			record.NewAsset.String("name"))
	}
	return nil
}

func listRecords(client *graphfold.Client) ([]*types.ReviewRecord, error) {
	if reviewAll {
		return client.GetQueue().List()
	}
	return client.PendingReviews()
}

func runReviewApply(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	verdict := types.ReviewDecision(strings.ToLower(strings.TrimSpace(args[1])))
	if !verdict.Valid() {
		return fmt.Errorf("decision must be merge or separate, got %q", args[1])
	}

	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	record, err := client.ApplyReview(ctx, args[0], verdict, reviewNotes, reviewer())
	if err != nil {
		return err
	}
	fmt.Printf("applied %s to %s (%s)\n", string(verdict), record.ID, record.EntityType)
	return nil
}

// runInteractive walks the pending queue, rendering each record and
// prompting for a decision.
func runInteractive(ctx context.Context, client *graphfold.Client) error {
	pending, err := client.PendingReviews()
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		fmt.Println("no pending reviews")
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	decided := 0
	for i, record := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}

		fmt.Printf("\n--- record %d of %d ---\n", i+1, len(pending))
		renderRecord(client.GetTaxonomy(), record)

		answer, err := prompt(reader, "[m]erge  [s]eparate  [k]eep for later  [q]uit: ")
		if err != nil {
			return err
		}
		var verdict types.ReviewDecision
		switch answer {
		case "m", "merge":
			verdict = types.DecisionMerge
		case "s", "separate":
			verdict = types.DecisionSeparate
		case "q", "quit":
			fmt.Printf("decided %d of %d\n", decided, len(pending))
			return nil
		default:
			continue
		}

		notes := reviewNotes
		if notes == "" {
			notes, err = prompt(reader, "notes (optional): ")
			if err != nil {
				return err
			}
		}
		if _, err := client.ApplyReview(ctx, record.ID, verdict, notes, reviewer()); err != nil {
			fmt.Printf("apply failed: %v\n", err)
			continue
		}
		decided++
		fmt.Printf("applied %s\n", string(verdict))
	}
	fmt.Printf("decided %d of %d\n", decided, len(pending))
	return nil
}

func prompt(reader *bufio.Reader, question string) (string, error) {
	fmt.Print(question)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(line)), nil
}

func reviewer() string {
	if reviewerName != "" {
		return reviewerName
	}
	if user := os.Getenv("USER"); user != "" {
		return user
	}
	return "cli"
}

// hiddenKeys are bookkeeping properties not worth a diff row.
var hiddenKeys = map[string]bool{
	"internal_id": true,
	"natural_key": true,
	"created_at":  true,
	"updated_at":  true,
}

// renderRecord prints the two snapshots side by side, taxonomy-declared
// properties first so reviewers see the discriminating fields up top.
// Differing values are marked with an asterisk.
func renderRecord(provider taxonomy.Provider, record *types.ReviewRecord) {
	fmt.Printf("%s  %s  score %.2f  created %s\n",
		record.ID, record.EntityType, record.ConfidenceScore,
		record.CreatedAt.Format("2006-01-02 15:04"))
	fmt.Printf("  %-18s  %-30s  %-30s\n", "PROPERTY", "EXISTING", "INCOMING")

	for _, key := range diffKeys(provider, record) {
		existing := snapshotValue(record.ExistingAsset, key)
		incoming := snapshotValue(record.NewAsset, key)
		marker := " "
		if existing != incoming && existing != "" && incoming != "" {
			marker = "*"
		}
		fmt.Printf("%s %-18s  %-30s  %-30s\n", marker, key, truncate(existing, 30), truncate(incoming, 30))
	}
}

// diffKeys orders snapshot keys: the taxonomy's declared properties for the
// type first, then everything else alphabetically.
func diffKeys(provider taxonomy.Provider, record *types.ReviewRecord) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(key string) {
		if key == "" || seen[key] || hiddenKeys[key] {
			return
		}
		seen[key] = true
		keys = append(keys, key)
	}

	if provider != nil {
		for _, key := range provider.PropertiesFor(record.EntityType) {
			if record.ExistingAsset.Has(key) || record.NewAsset.Has(key) {
				add(key)
			}
		}
	}

	var rest []string
	for key := range record.ExistingAsset {
		rest = append(rest, key)
	}
	for key := range record.NewAsset {
		rest = append(rest, key)
	}
	sort.Strings(rest)
	for _, key := range rest {
		add(key)
	}
	return keys
}

func snapshotValue(props types.Properties, key string) string {
	value, ok := props[key]
	if !ok || value == nil {
		return ""
	}
	return fmt.Sprint(value)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
