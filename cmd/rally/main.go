package main

import (
	"os"

	"github.com/rallylog/rallylog/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
