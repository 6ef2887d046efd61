package main

import (
	"os"

	"github.com/cnergy/cnergy/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
