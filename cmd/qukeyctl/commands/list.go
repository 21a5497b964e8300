package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func listCmd() *cobra.Command {
	var (
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List --user's keys, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			keys, err := client.ListKeys(cmd.Context(), userID, status, limit)
			if err != nil {
				return err
			}

			fmt.Printf("%-38s %-8s %5s %-7s %-20s %s\n", "KEY ID", "STATUS", "BITS", "PROTO", "EXPIRES", "ANCHORED")
			for _, key := range keys.Keys {
				anchored := "-"
				if key.HashStored {
					anchored = "yes"
				}
				fmt.Printf("%-38s %-8s %5d %-7s %-20s %s\n",
					key.KeyID, key.Status, key.KeyLength, key.Protocol,
					key.ExpiresAt.Local().Format("2006-01-02 15:04:05"), anchored)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "filter by status: unused, used or expired")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum entries (server default when 0)")
	return cmd
}
