// Package handlers exposes the game data slice over HTTP.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/internal/server/respond"
)

// maxDays caps how long a requested game can be.
const maxDays = 90

// defaultDays is the game length when the request names none.
const defaultDays = 10

// GameDataHandlers serves read-only slices of the historical market.
type GameDataHandlers struct {
	slices         *gamedata.Cache
	defaultTickers []string
	log            zerolog.Logger
}

// NewGameDataHandlers creates game data handlers.
func NewGameDataHandlers(slices *gamedata.Cache, defaultTickers []string, log zerolog.Logger) *GameDataHandlers {
	return &GameDataHandlers{
		slices:         slices,
		defaultTickers: defaultTickers,
		log:            log.With().Str("handler", "gamedata").Logger(),
	}
}

// RegisterRoutes registers the game data routes.
func (h *GameDataHandlers) RegisterRoutes(r chi.Router) {
	r.Get("/game/data", h.HandleGameData)
}

// HandleGameData returns the deterministic game slice for the requested
// window. Query parameters: days (1..90, default 10), tickers (CSV,
// defaults to the configured list), start_date and end_date (YYYY-MM-DD).
func (h *GameDataHandlers) HandleGameData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	days := defaultDays
	if raw := q.Get("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			respond.Error(w, r, domain.E(domain.KindValidation, "days must be an integer, got %q", raw))
			return
		}
		days = n
	}
	if days < 1 || days > maxDays {
		respond.Error(w, r, domain.E(domain.KindValidation,
			"days must be between 1 and %d, got %d", maxDays, days))
		return
	}

	tickers := h.defaultTickers
	if raw := q.Get("tickers"); raw != "" {
		tickers = strings.Split(raw, ",")
	}

	cfg := domain.GameConfig{
		// The builder never touches cash; Normalize just wants it sane.
		InitialCash: 10000,
		NumDays:     days,
		Tickers:     tickers,
		StartDate:   q.Get("start_date"),
		EndDate:     q.Get("end_date"),
	}
	if err := cfg.Normalize(); err != nil {
		respond.Error(w, r, err)
		return
	}

	slice, err := h.slices.Get(r.Context(), cfg)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, slice)
}
