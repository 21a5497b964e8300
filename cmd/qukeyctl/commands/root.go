package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/talhajamadar1013-star/Qmail/internal/kmclient"
)

var (
	serverURL string
	token     string
	userID    string

	client *kmclient.Client
)

func Execute() error {
	root := &cobra.Command{
		Use:   "qukeyctl",
		Short: "Operator CLI for the QuMail key manager",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := kmclient.New(serverURL, kmclient.WithToken(token))
			if err != nil {
				return err
			}
			client = c
			return nil
		},
	}

	root.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:5000", "key manager base URL")
	root.PersistentFlags().StringVar(&token, "token", "", "bearer token (service token for share and sweep)")
	root.PersistentFlags().StringVarP(&userID, "user", "u", "", "acting user (key holder)")

	root.AddCommand(generateCmd(), fetchCmd(), consumeCmd(), shareCmd(), hashCmd(), listCmd(), statsCmd(), sweepCmd(), healthCmd())
	return root.Execute()
}

func requireUser() error {
	if userID == "" {
		return fmt.Errorf("--user required")
	}
	return nil
}
