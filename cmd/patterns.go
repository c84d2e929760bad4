package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dasida/tutor/internal/patterns"
)

var patternsCmd = &cobra.Command{
	Use:   "patterns [file]",
	Short: "Extract error-pattern labels from report text (stdin when no file)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			data []byte
			err  error
		)
		if len(args) == 1 {
			data, err = os.ReadFile(args[0])
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
		}
		if err != nil {
			return fmt.Errorf("read report: %w", err)
		}

		labels := patterns.Extract(string(data))
		if len(labels) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No error patterns found.")
			return nil
		}
		for _, l := range labels {
			fmt.Fprintln(cmd.OutOrStdout(), l)
		}
		return nil
	},
}
