// Package main provides the entry point for the codegrip CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/codegrip/cmd/codegrip/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
