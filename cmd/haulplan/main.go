// Package main is the entrypoint for the haulplan CLI.
package main

import (
	"github.com/joho/godotenv"

	"github.com/haulplan/haulplan/internal/cli"
)

// Version is set at compile time via ldflags.
var Version = "dev"

func main() {
	// Environment variables win over .env.
	_ = godotenv.Load()
	cli.Execute(Version)
}
