package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/davguerra/filmoteca/internal"
	"github.com/davguerra/filmoteca/pkg/logger"
)

var log = logger.Get("Main")

// main loads the user configuration, constructs the server, and runs it
// until an interrupt or termination signal arrives.
func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	verbose := flag.Bool("verbose", false, "enable verbose logging")
	flag.Parse()

	if *verbose {
		logger.SetMinLoggingLevel(logger.VERBOSE.Level())
	} else {
		logger.SetMinLoggingLevel(logger.INFO.Level())
	}

	config := internal.FilmotecaConfig{}
	if err := config.LoadFromFile(*configPath); err != nil {
		log.Emit(logger.FATAL, "Failed to load configuration: %s\n", err.Error())
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Emit(logger.FATAL, "Filmoteca stopped: %s\n", err.Error())
		os.Exit(1)
	}

	log.Emit(logger.STOP, "Filmoteca stopped\n")
}
