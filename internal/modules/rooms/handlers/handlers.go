// Package handlers exposes the multiplayer rooms API.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/modules/rooms"
	"github.com/aristath/stockroom/internal/server/respond"
)

// RoomHandlers serves the multiplayer endpoints. All game-state writes go
// through the rooms service; handlers only parse, delegate and encode.
type RoomHandlers struct {
	svc *rooms.Service
	log zerolog.Logger
}

// NewRoomHandlers creates room handlers.
func NewRoomHandlers(svc *rooms.Service, log zerolog.Logger) *RoomHandlers {
	return &RoomHandlers{
		svc: svc,
		log: log.With().Str("handler", "rooms").Logger(),
	}
}

// RegisterRoutes registers the multiplayer routes.
func (h *RoomHandlers) RegisterRoutes(r chi.Router) {
	r.Route("/multiplayer", func(r chi.Router) {
		r.Post("/rooms", h.HandleCreateRoom)
		r.Post("/rooms/join", h.HandleJoin)

		r.Route("/rooms/{code}", func(r chi.Router) {
			r.Get("/", h.HandleGetRoom)
			r.Get("/state", h.HandleRoomState)
			r.Get("/leaderboard", h.HandleLeaderboard)
			r.Post("/start", h.HandleStart)
			r.Post("/advance-day", h.HandleAdvanceDay)
			r.Post("/set-timer", h.HandleSetTimer)
			r.Post("/end-game", h.HandleEndGame)
		})

		r.Route("/players/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetPlayer)
			r.Put("/", h.HandleUpdatePlayer)
			r.Post("/ready", h.HandleMarkReady)
		})
	})
}

// HandleCreateRoom creates a room in the waiting state.
func (h *RoomHandlers) HandleCreateRoom(w http.ResponseWriter, r *http.Request) {
	var req rooms.CreateRoomRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	room, err := h.svc.CreateRoom(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusCreated, room)
}

// HandleJoin adds a player to a room, or resumes one whose name is already
// taken there.
func (h *RoomHandlers) HandleJoin(w http.ResponseWriter, r *http.Request) {
	var req rooms.JoinRequest
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	player, resumed, err := h.svc.Join(r.Context(), req)
	if err != nil {
		respond.Error(w, r, err)
		return
	}

	status := http.StatusCreated
	if resumed {
		status = http.StatusOK
	}
	respond.JSON(w, status, player)
}

// HandleGetRoom returns the full room with its players.
func (h *RoomHandlers) HandleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := h.svc.GetRoom(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, room)
}

// HandleRoomState returns the lightweight polling record.
func (h *RoomHandlers) HandleRoomState(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.RoomState(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, state)
}

// HandleLeaderboard returns the ranked players.
func (h *RoomHandlers) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	board, err := h.svc.Leaderboard(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, board)
}

// HandleStart starts the game. Teacher only.
func (h *RoomHandlers) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		StartedBy string `json:"started_by"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	room, err := h.svc.Start(r.Context(), chi.URLParam(r, "code"), req.StartedBy)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, room)
}

// HandleAdvanceDay advances a synchronized room one day. Teacher only.
func (h *RoomHandlers) HandleAdvanceDay(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitiatedBy  string `json:"initiated_by"`
		DayTimeLimit *int   `json:"day_time_limit,omitempty"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	room, err := h.svc.AdvanceDay(r.Context(), chi.URLParam(r, "code"), req.InitiatedBy, req.DayTimeLimit)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, room)
}

// HandleSetTimer changes a sync_auto room's countdown. Teacher only.
func (h *RoomHandlers) HandleSetTimer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestedBy     string `json:"requested_by"`
		DurationSeconds int    `json:"duration_seconds"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	room, err := h.svc.SetTimer(r.Context(), chi.URLParam(r, "code"), req.RequestedBy, req.DurationSeconds)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, room)
}

// HandleEndGame finishes the game early. Teacher only.
func (h *RoomHandlers) HandleEndGame(w http.ResponseWriter, r *http.Request) {
	var req struct {
		EndedBy string `json:"ended_by"`
	}
	if err := respond.Decode(r, &req); err != nil {
		respond.Error(w, r, err)
		return
	}

	room, err := h.svc.EndGame(r.Context(), chi.URLParam(r, "code"), req.EndedBy)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, room)
}

// HandleGetPlayer returns a player with ledger and history.
func (h *RoomHandlers) HandleGetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := h.svc.GetPlayer(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, player)
}

// HandleUpdatePlayer applies the client's state patch: queue new trades,
// optionally advance the day (async rooms), optionally finish. The response
// is the server's authoritative player state.
func (h *RoomHandlers) HandleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var patch rooms.PlayerPatch
	if err := respond.Decode(r, &patch); err != nil {
		respond.Error(w, r, err)
		return
	}

	player, err := h.svc.SubmitPlayerState(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, player)
}

// HandleMarkReady flags the player done with the current day.
func (h *RoomHandlers) HandleMarkReady(w http.ResponseWriter, r *http.Request) {
	player, err := h.svc.MarkReady(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respond.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, player)
}
