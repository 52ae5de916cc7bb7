package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medata/medrecords/config"
	"github.com/medata/medrecords/gologger"
	"github.com/medata/medrecords/http_server"
	"github.com/medata/medrecords/migrations"
	"github.com/medata/medrecords/pg"
	"github.com/medata/medrecords/s3_helper"
	"github.com/medata/medrecords/utils"
)

var logger = gologger.NewLogger()

func main() {
	logger.Debug().Msg("starting medrecords api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error().Err(err).Msg("error loading config")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	pool, err := pg.Connect(ctx, cfg.PostgresURL())
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("error connecting to postgres")
		os.Exit(1)
	}
	defer pool.Close()

	if utils.GetEnvOrDefault("RUN_MIGRATIONS", "") == "1" {
		applied, err := migrations.RunMigrations(cfg.PostgresURL())
		if err != nil {
			logger.Error().Err(err).Msg("error running migrations")
			os.Exit(1)
		}
		logger.Info().Int("applied", applied).Msg("migrations applied")
	} else if err := migrations.CheckMigrations(cfg.PostgresURL()); err != nil {
		logger.Error().Err(err).Msg("error checking migrations")
		os.Exit(1)
	}

	ctx, cancel = context.WithTimeout(context.Background(), time.Second*30)
	s3c, err := s3_helper.NewClient(ctx, cfg)
	cancel()
	if err != nil {
		logger.Error().Err(err).Msg("error connecting to object storage")
		os.Exit(1)
	}

	httpServer := http_server.StartHTTPServer(cfg, pool, s3c)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	// Convert the time to seconds
	sleepTime := utils.GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))

	time.Sleep(time.Second * time.Duration(sleepTime))
	logger.Info().Msg(fmt.Sprintf("slept for %ds, exiting", sleepTime))

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Second*10)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}
}
