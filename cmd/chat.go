package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dasida/tutor/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Solve a textbook problem with the tutor in the terminal",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat(cmd)
	},
}

// runChat launches the TUI with logging off; zap writes to stderr.
func runChat(cmd *cobra.Command) error {
	svc, err := buildServices(cmd, "quiet")
	if err != nil {
		return err
	}
	defer svc.Close()

	userID, _ := cmd.Flags().GetInt64("user")
	return tui.Run(tui.Deps{
		Tutor:   svc.tutor,
		Store:   svc.store.Transcripts(),
		Reports: svc.reports,
		UserID:  userID,
	})
}

func init() {
	chatCmd.Flags().Int64("user", 1, "User id recorded on the conversation")
	rootCmd.Flags().Int64("user", 1, "User id recorded on the conversation")
}
