package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/cli"
)

// Standalone API binary, equivalent to `adtbridge api`.
func main() {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(append([]string{"api"}, os.Args[1:]...))

	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run API server")
	}
}
