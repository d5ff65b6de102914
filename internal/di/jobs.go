package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/config"
	"github.com/aristath/stockroom/internal/scheduler"
)

// RegisterJobs creates the cron scheduler and registers the maintenance
// jobs. The scheduler is not started here; main starts it once the room
// timers have been restored.
func RegisterJobs(container *Container, cfg *config.Config, log zerolog.Logger) error {
	container.Scheduler = scheduler.New(log)

	jobs := []struct {
		schedule string
		job      scheduler.Job
	}{
		// 3 AM daily: truncate WALs before the nightly backup snapshots.
		{"0 0 3 * * *", scheduler.NewWALCheckpointJob(container.Databases(), log)},
		// 4 AM daily: drop rooms past the retention window.
		{"0 0 4 * * *", scheduler.NewRoomCleanupJob(container.RoomRepo, container.RoomService, container.EventManager, cfg.RoomRetention, log)},
		// Hourly: evict idle game slices.
		{"@hourly", scheduler.NewCachePruneJob(container.SliceCache, log)},
	}

	if cfg.Backup.Enabled {
		jobs = append(jobs, struct {
			schedule string
			job      scheduler.Job
		}{"0 30 3 * * *", container.BackupService})
	}

	for _, entry := range jobs {
		if err := container.Scheduler.AddJob(entry.schedule, entry.job); err != nil {
			return fmt.Errorf("failed to register %s job: %w", entry.job.Name(), err)
		}
	}

	return nil
}
