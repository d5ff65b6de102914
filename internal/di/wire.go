package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/config"
)

// Wire initializes all dependencies and returns a fully configured
// container. Order of operations:
//  1. Open and migrate databases
//  2. Build repositories and services
//  3. Register scheduled jobs
func Wire(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container, err := InitializeDatabases(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize databases: %w", err)
	}

	if err := InitializeServices(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	if err := RegisterJobs(container, cfg, log); err != nil {
		container.Close()
		return nil, fmt.Errorf("failed to register jobs: %w", err)
	}

	log.Info().Msg("Dependency injection wiring completed")

	return container, nil
}
