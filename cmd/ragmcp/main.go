package main

import (
	"os"

	"github.com/Dirstral/ragmcp/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		cli.PrintError(err)
		os.Exit(cli.ExitCode(err))
	}
}
