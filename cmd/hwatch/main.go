package main

import (
	"os"

	"github.com/harrier-systems/harrierwatch/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
