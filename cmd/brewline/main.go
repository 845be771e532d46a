package main

import (
	"os"

	"github.com/brewline/brewline/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
