package main

import (
	"os"

	"memodesk-backend/internal/cli"
)

var version string

func main() {
	if version != "" {
		cli.Version = version
	}
	if err := cli.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
