package main

import (
	"os"

	"github.com/tbojanin/airsampler/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
