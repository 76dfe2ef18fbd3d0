package main

import (
	"os"

	"github.com/oriondocs/orion/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
