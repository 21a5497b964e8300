package commands

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// fetch <key_id>: read your copy of the pad without burning it.
func fetchCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "fetch <key_id>",
		Short: "Fetch your copy of a key without consuming it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			material, err := client.FetchKey(cmd.Context(), args[0], userID)
			if err != nil {
				return err
			}

			if out != "" {
				if err := os.WriteFile(out, material, 0o600); err != nil {
					return err
				}
				fmt.Printf("Wrote %d bytes to %s\n", len(material), out)
				return nil
			}

			fmt.Println(hex.EncodeToString(material))
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "write raw key bytes to this file instead of printing hex")
	return cmd
}
