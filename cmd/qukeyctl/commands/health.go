package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check the service",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("%s (%s %s)\n", health.Status, health.Service, health.Version)
			return nil
		},
	}
}
