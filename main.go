package main

import (
	"os"

	"github.com/semlink/semlink/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
