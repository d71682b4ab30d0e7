package main

import (
	"os"

	"github.com/alphauslabs/verticalbuilder/cmd/worker/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
