package main

import (
	"os"

	"github.com/GriffinCanCode/CacheOnHover/cmd/server/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
