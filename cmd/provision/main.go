package main

import (
	"context"
	"log"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"

	"github.com/orbitlabs/provision/internal/config"
	"github.com/orbitlabs/provision/internal/deployer"
	"github.com/orbitlabs/provision/internal/geo"
	"github.com/orbitlabs/provision/internal/kai"
	"github.com/orbitlabs/provision/internal/logging"
	"github.com/orbitlabs/provision/internal/notify"
	"github.com/orbitlabs/provision/internal/provision"
)

func main() {
	// A local .env is optional.
	_ = godotenv.Load()

	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			return
		}
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.NewLogger(cfg)

	req, err := buildRequest(opts)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid provisioning input")
	}
	if err := req.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid provisioning request")
	}

	d := deployer.NewDockerDeployer(deployer.Options{
		NetworkName: cfg.DockerNetwork,
		KAIImage:    cfg.KAIImage,
		WorkerImage: cfg.WorkerImage,
		APIKey:      req.APIKey,
	}, logger)
	migrator := geo.NewMigrator(logger)
	schema := kai.NewClient(cfg.KAIAddress)
	reporter := provision.NewReporter(req, notify.NewClient(cfg.WorkflowAPIURL, req.AuthToken))

	orch := provision.NewOrchestrator(req, d, migrator, schema, reporter, logger)
	if err := orch.Run(context.Background()); err != nil {
		logger.Error().Err(err).Msg("provisioning failed")
		os.Exit(1)
	}

	logger.Info().Msg("setup completed successfully")
}
