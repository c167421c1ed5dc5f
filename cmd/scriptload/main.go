package main

import (
	"os"

	"github.com/goliatone/go-scriptload/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
