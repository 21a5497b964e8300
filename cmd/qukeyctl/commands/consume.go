package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func consumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consume <key_id>",
		Short: "Mark your copy of a key used",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			consumed, err := client.ConsumeKey(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}
			fmt.Printf("Key %s is now %s\n", consumed.KeyID, consumed.Status)
			return nil
		},
	}
}
