package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/database"
	"github.com/aristath/stockroom/internal/events"
	"github.com/aristath/stockroom/internal/modules/gamedata"
	"github.com/aristath/stockroom/internal/modules/rooms"
)

// cacheIdleCutoff is how long a slice sits unused before the prune job
// drops it.
const cacheIdleCutoff = 24 * time.Hour

// WALCheckpointJob truncates the write-ahead logs of every open database so
// the WAL files cannot grow without bound on a long-running deployment.
type WALCheckpointJob struct {
	dbs []*database.DB
	log zerolog.Logger
}

// NewWALCheckpointJob creates the checkpoint job over the given databases.
func NewWALCheckpointJob(dbs []*database.DB, log zerolog.Logger) *WALCheckpointJob {
	return &WALCheckpointJob{
		dbs: dbs,
		log: log.With().Str("job", "wal_checkpoint").Logger(),
	}
}

// Name implements Job.
func (j *WALCheckpointJob) Name() string { return "wal_checkpoint" }

// Run implements Job.
func (j *WALCheckpointJob) Run() error {
	var failed []string
	for _, db := range j.dbs {
		if err := db.WALCheckpoint("TRUNCATE"); err != nil {
			j.log.Error().Err(err).Str("database", db.Name()).Msg("WAL checkpoint failed")
			failed = append(failed, db.Name())
			continue
		}
		j.log.Debug().Str("database", db.Name()).Msg("WAL checkpointed")
	}

	if len(failed) > 0 {
		return fmt.Errorf("wal checkpoint failed for %v", failed)
	}
	return nil
}

// RoomCleanupJob deletes rooms that finished longer ago than the retention
// window, cascading their players, trades and snapshots.
type RoomCleanupJob struct {
	repo      *rooms.RoomRepository
	svc       *rooms.Service
	events    *events.Manager
	retention time.Duration
	log       zerolog.Logger
}

// NewRoomCleanupJob creates the retention cleanup job.
func NewRoomCleanupJob(repo *rooms.RoomRepository, svc *rooms.Service, eventManager *events.Manager, retentionDays int, log zerolog.Logger) *RoomCleanupJob {
	return &RoomCleanupJob{
		repo:      repo,
		svc:       svc,
		events:    eventManager,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		log:       log.With().Str("job", "room_cleanup").Logger(),
	}
}

// Name implements Job.
func (j *RoomCleanupJob) Name() string { return "room_cleanup" }

// Run implements Job.
func (j *RoomCleanupJob) Run() error {
	ctx := context.Background()
	cutoff := time.Now().Add(-j.retention)

	codes, err := j.repo.FinishedBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	deleted := 0
	for _, code := range codes {
		if err := j.svc.DeleteRoom(ctx, code); err != nil {
			j.log.Error().Err(err).Str("room_code", code).Msg("Failed to delete expired room")
			continue
		}
		deleted++
	}

	if deleted > 0 {
		j.log.Info().Int("deleted", deleted).Time("cutoff", cutoff).Msg("Expired rooms cleaned")
		j.events.Emit(events.RoomsCleaned, "scheduler", map[string]interface{}{
			"deleted": deleted,
		})
	}

	return nil
}

// CachePruneJob drops game slices nobody has requested for a day.
type CachePruneJob struct {
	cache *gamedata.Cache
	log   zerolog.Logger
}

// NewCachePruneJob creates the slice cache prune job.
func NewCachePruneJob(cache *gamedata.Cache, log zerolog.Logger) *CachePruneJob {
	return &CachePruneJob{
		cache: cache,
		log:   log.With().Str("job", "cache_prune").Logger(),
	}
}

// Name implements Job.
func (j *CachePruneJob) Name() string { return "cache_prune" }

// Run implements Job.
func (j *CachePruneJob) Run() error {
	j.cache.Prune(cacheIdleCutoff)
	return nil
}
