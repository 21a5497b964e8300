package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarize --user's keys by status",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			stats, err := client.Stats(cmd.Context(), userID)
			if err != nil {
				return err
			}

			fmt.Printf("total:   %d\n", stats.TotalKeys)
			fmt.Printf("unused:  %d\n", stats.ActiveKeys)
			fmt.Printf("used:    %d\n", stats.UsedKeys)
			fmt.Printf("expired: %d\n", stats.ExpiredKeys)
			return nil
		},
	}
}
