package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var reportCmd = &cobra.Command{
	Use:   "report <conversation-id>",
	Short: "Generate an incorrect-answer report for a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildServices(cmd, "")
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		res, err := svc.reports.Synthesize(ctx, args[0])
		if err != nil {
			return err
		}

		sep := strings.Repeat("─", 60)
		fmt.Printf("Conversation:  %s\n", res.ConversationID)
		fmt.Printf("Problem:       %d (%s)\n", res.Problem.ID, res.Problem.Name)
		fmt.Printf("Messages:      %d\n", res.MessageCount)
		fmt.Printf("Model:         %s\n", res.Model)
		fmt.Printf("Tokens:        %d in / %d out\n", res.Usage.InputTokens, res.Usage.OutputTokens)
		if len(res.Patterns) > 0 {
			fmt.Printf("Patterns:      %s\n", strings.Join(res.Patterns, ", "))
		} else {
			fmt.Println("Patterns:      (none)")
		}
		fmt.Println(sep)
		fmt.Println(res.Text)
		fmt.Println(sep)

		if save, _ := cmd.Flags().GetBool("save"); save {
			id, err := svc.store.Reports().Insert(ctx, res.Report())
			if err != nil {
				return fmt.Errorf("save report: %w", err)
			}
			fmt.Printf("Saved as report %d\n", id)
		}
		return nil
	},
}

func init() {
	reportCmd.Flags().Bool("save", false, "Store the report")
}
