package main

import (
	"os"

	"github.com/kokotools/kokoctl/cmd/kokoctl/commands"
	"github.com/kokotools/kokoctl/pkg/cli"
)

func main() {
	if err := commands.Execute(); err != nil {
		cli.PrintError("%v", err)
		os.Exit(1)
	}
}
