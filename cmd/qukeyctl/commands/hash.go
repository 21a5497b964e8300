package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func hashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash <key_id>",
		Short: "Print a key's fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := client.KeyHash(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(hash)
			return nil
		},
	}
}
