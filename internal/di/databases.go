package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/config"
	"github.com/aristath/stockroom/internal/database"
)

// InitializeDatabases opens the five databases and applies their schemas.
// Schemas are idempotent, so migrating the pre-built content stores is a
// no-op in normal operation.
func InitializeDatabases(cfg *config.Config, log zerolog.Logger) (*Container, error) {
	container := &Container{}

	specs := []struct {
		name    string
		profile database.DatabaseProfile
		target  **database.DB
	}{
		{"market_data", database.ProfileStandard, &container.MarketDataDB},
		{"news", database.ProfileStandard, &container.NewsDB},
		{"features", database.ProfileStandard, &container.FeaturesDB},
		{"agents", database.ProfileStandard, &container.AgentsDB},
		// Maximum safety for the game state and its trade ledger.
		{"multiplayer", database.ProfileLedger, &container.MultiplayerDB},
	}

	for _, spec := range specs {
		db, err := database.New(database.Config{
			Path:    cfg.DatabasePath(spec.name),
			Profile: spec.profile,
			Name:    spec.name,
		})
		if err != nil {
			container.Close()
			return nil, fmt.Errorf("failed to initialize %s database: %w", spec.name, err)
		}

		if err := db.Migrate(); err != nil {
			db.Close()
			container.Close()
			return nil, fmt.Errorf("failed to migrate %s database: %w", spec.name, err)
		}

		*spec.target = db
		log.Debug().Str("database", spec.name).Str("path", db.Path()).Msg("Database opened")
	}

	return container, nil
}
