package main

import (
	"os"

	"github.com/seedling-ai/companion/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
