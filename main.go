package main

import (
	"fmt"
	"os"

	"github.com/lectern-ai/lectern/cmd"
)

// main is a minimal entry point; all application logic lives in cmd.
func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
