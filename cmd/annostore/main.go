package main

import (
	"os"

	"github.com/annolab/annostore/cmd/annostore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
