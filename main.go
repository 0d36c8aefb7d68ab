package main

import (
	"os"

	"github.com/vanmaster/vanmaster/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
