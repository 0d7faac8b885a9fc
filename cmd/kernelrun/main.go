package main

import (
	"os"

	"github.com/xupit3r/kernelrun/cmd/kernelrun/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
