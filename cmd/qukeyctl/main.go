package main

import (
	"os"

	"github.com/talhajamadar1013-star/Qmail/cmd/qukeyctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
