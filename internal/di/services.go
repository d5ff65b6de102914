package di

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/config"
	"github.com/aristath/stockroom/internal/events"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/internal/modules/historical"
	"github.com/aristath/stockroom/internal/modules/portfolio"
	"github.com/aristath/stockroom/internal/modules/rooms"
	"github.com/aristath/stockroom/internal/reliability"
	"github.com/aristath/stockroom/internal/scheduler"
)

// InitializeServices builds the repositories and services on top of the open
// databases, including the room clock wiring.
func InitializeServices(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.EventManager = events.NewManager(log)

	// Read side: historical gateway over the four content stores.
	prices := historical.NewPriceRepository(container.MarketDataDB.Conn(), log)
	news := historical.NewNewsRepository(container.NewsDB.Conn(), log)
	features := historical.NewFeatureRepository(container.FeaturesDB.Conn(), log)
	recs := historical.NewRecommendationRepository(container.AgentsDB.Conn(), log)
	container.Gateway = historical.NewGateway(prices, news, features, recs, cfg.EarliestGameDate, log)

	builder := gamedata.NewBuilder(container.Gateway, log)
	container.SliceCache = gamedata.NewCache(builder, log)

	// Write side: the multiplayer game.
	container.RoomRepo = rooms.NewRoomRepository(container.MultiplayerDB.Conn(), log)
	container.PlayerRepo = rooms.NewPlayerRepository(container.MultiplayerDB.Conn(), log)
	container.Engine = portfolio.NewEngine(log)
	container.RoomService = rooms.NewService(
		container.RoomRepo,
		container.PlayerRepo,
		container.SliceCache,
		container.Engine,
		container.EventManager,
		log,
	)

	container.RoomClock = scheduler.NewRoomClock(container.RoomService, log)
	container.RoomService.SetClock(container.RoomClock)

	store, err := reliability.NewObjectStore(context.Background(), cfg.Backup, log)
	if err != nil {
		return err
	}
	container.BackupService = reliability.NewBackupService(
		container.MultiplayerDB,
		cfg.Backup,
		store,
		container.EventManager,
		log,
	)

	return nil
}
