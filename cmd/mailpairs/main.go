package main

import (
	"os"

	"github.com/MikeSquared-Agency/mailpairs/cmd/mailpairs/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
