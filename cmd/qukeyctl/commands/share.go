package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// share <key_id> <recipient>: duplicate your copy for the recipient. Needs
// the service token.
func shareCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "share <key_id> <recipient>",
		Short: "Give a recipient their own copy of your key",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			shared, err := client.ShareKey(cmd.Context(), args[0], userID, args[1])
			if err != nil {
				return err
			}

			if shared.Copied {
				fmt.Printf("Shared %s with %s\n", shared.KeyID, shared.Holder)
			} else {
				fmt.Printf("%s already holds a copy of %s\n", shared.Holder, shared.KeyID)
			}
			return nil
		},
	}
}
