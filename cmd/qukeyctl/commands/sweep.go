package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// sweep: server-side expiry pass. Needs the service token.
func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Mark all overdue key copies expired",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := client.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Marked %d copies expired\n", result.ExpiredCount)
			return nil
		},
	}
}
