package main

import (
	"os"

	"github.com/pverhoeven/warden/cmd/warden/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
