package main

import (
	"flag"
	"fmt"
	"os"

	"meetup-backend/cmd"

	"github.com/rs/zerolog/log"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the config file")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-config file] [seed -f places.yaml]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.Arg(0) == "seed" {
		fs := flag.NewFlagSet("seed", flag.ExitOnError)
		file := fs.String("f", "places.yaml", "YAML file with places")
		fs.Parse(flag.Args()[1:])
		if err := cmd.RunSeed(*configPath, *file); err != nil {
			log.Fatal().Err(err).Msg("Seed failed")
		}
		return
	}

	cmd.Run(*configPath)
}
