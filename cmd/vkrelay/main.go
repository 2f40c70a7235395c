package main

import (
	"os"

	"vkrelay/cmd/vkrelay/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
