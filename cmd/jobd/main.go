package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/vulntor/jobkit/cmd/jobd/commands"
)

func main() {
	if err := commands.NewCommand().Execute(); err != nil {
		log.Error().Err(err).Msg("jobd failed")
		os.Exit(1)
	}
}
