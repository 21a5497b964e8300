package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func generateCmd() *cobra.Command {
	var (
		bits int
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a fresh one-time-pad key for --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := requireUser(); err != nil {
				return err
			}

			generated, err := client.GenerateKey(cmd.Context(), userID, bits, ttl)
			if err != nil {
				return err
			}

			// Just the ID, so scripts can capture it.
			fmt.Println(generated.KeyID)
			return nil
		},
	}
	cmd.Flags().IntVar(&bits, "bits", 0, "key length in bits (server default when 0)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "key lifetime, e.g. 24h (server default when 0)")
	return cmd
}
