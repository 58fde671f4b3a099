package main

import (
	"os"

	"github.com/wishlistai/backend/cmd/viewer/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
