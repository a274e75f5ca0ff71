package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"stealthcompany.com/adtbridge/internal/cli"
)

// Standalone ingest binary, equivalent to `adtbridge ingest`.
func main() {
	cmd := cli.NewRootCommand()
	cmd.SetArgs(append([]string{"ingest"}, os.Args[1:]...))

	if err := cmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ingest FHIR encounters")
	}
}
