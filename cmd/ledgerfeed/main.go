package main

import (
	"os"

	"github.com/ledgerfeed-dev/ledgerfeed/internal/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
