// Package di wires the application together: databases, repositories,
// services and scheduled jobs, in that order.
package di

import (
	"github.com/aristath/stockroom/internal/database"
	"github.com/aristath/stockroom/internal/events"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/internal/modules/historical"
	"github.com/aristath/stockroom/internal/modules/portfolio"
	"github.com/aristath/stockroom/internal/modules/rooms"
	"github.com/aristath/stockroom/internal/reliability"
	"github.com/aristath/stockroom/internal/scheduler"
)

// Container holds every long-lived dependency. It is built once at startup
// by Wire and torn down by Close.
type Container struct {
	// Databases. The first four are read-only content stores; multiplayer
	// is the only one the game writes to.
	MarketDataDB  *database.DB
	NewsDB        *database.DB
	FeaturesDB    *database.DB
	AgentsDB      *database.DB
	MultiplayerDB *database.DB

	// Repositories
	RoomRepo   *rooms.RoomRepository
	PlayerRepo *rooms.PlayerRepository

	// Services
	EventManager *events.Manager
	Gateway      *historical.Gateway
	SliceCache   *gamedata.Cache
	Engine       *portfolio.Engine
	RoomService  *rooms.Service

	// Background work
	Scheduler     *scheduler.Scheduler
	RoomClock     *scheduler.RoomClock
	BackupService *reliability.BackupService
}

// Databases returns all open databases, in a stable order.
func (c *Container) Databases() []*database.DB {
	return []*database.DB{
		c.MarketDataDB,
		c.NewsDB,
		c.FeaturesDB,
		c.AgentsDB,
		c.MultiplayerDB,
	}
}

// Close releases every database connection.
func (c *Container) Close() {
	for _, db := range c.Databases() {
		if db != nil {
			db.Close()
		}
	}
}
