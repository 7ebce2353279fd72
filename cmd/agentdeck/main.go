package main

import (
	"os"

	"github.com/agentdeck/agentdeck/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
