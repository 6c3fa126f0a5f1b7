// Package main is the entry point for the Authentication Engine.
package main

import (
	"fmt"
	"os"

	"github.com/nforgeio/lilltek-auth/cmd/authengine/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
