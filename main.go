package main

import (
	"os"

	"github.com/Tiimber/ev-smart-charger/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
