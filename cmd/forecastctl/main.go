// Package main is the entry point for the forecastctl CLI.
package main

import (
	"os"

	"forecast/cmd/forecastctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
