package graphfold

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete every node and relationship from the graph",
	Long: `Reset removes all graph data in bounded chunks. The review queue and
the decision log are kept; they are the audit trail.`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().BoolVar(&resetYes, "yes", false, "skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if !resetYes {
		fmt.Print("This deletes every node and relationship. Type 'yes' to continue: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return err
		}
		if strings.ToLower(strings.TrimSpace(line)) != "yes" {
			fmt.Println("aborted")
			return nil
		}
	}

	client, err := openClient()
	if err != nil {
		return err
	}
	defer client.Close(context.Background())

	deleted, err := client.Reset(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("deleted %d node(s)\n", deleted)
	return nil
}
