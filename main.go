package main

import (
	"github.com/dojo-hq/dojo-cli/cmd"
	"github.com/dojo-hq/dojo-cli/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cmd.Execute()
}
