// Package main is the entry point for the Stockroom game server. It serves
// the classroom trading simulator: historical game data for the client, and
// the authoritative multiplayer room state.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/stockroom/internal/config"
	"github.com/aristath/stockroom/internal/di"
	gamedatahandlers "github.com/aristath/stockroom/internal/modules/gamedata/handlers"
	roomhandlers "github.com/aristath/stockroom/internal/modules/rooms/handlers"
	"github.com/aristath/stockroom/internal/server"
	"github.com/aristath/stockroom/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting Stockroom")

	container, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Restore countdowns for rooms that were mid-day when the process last
	// stopped. Overdue rooms advance immediately.
	if err := container.RoomClock.Rearm(context.Background(), container.RoomRepo); err != nil {
		log.Error().Err(err).Msg("Failed to restore room timers")
	}

	container.Scheduler.Start()

	srv := server.New(server.Config{
		Log:       log,
		Port:      cfg.Port,
		DevMode:   cfg.DevMode,
		DataDir:   cfg.DataDir,
		Databases: container.Databases(),
		RoomRepo:  container.RoomRepo,
		Clock:     container.RoomClock,
		GameData:  gamedatahandlers.NewGameDataHandlers(container.SliceCache, cfg.DefaultTickers, log),
		Rooms:     roomhandlers.NewRoomHandlers(container.RoomService, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	// Stop accepting new work before draining HTTP: no timer may fire an
	// advance while requests are still completing.
	container.RoomClock.Stop()
	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
