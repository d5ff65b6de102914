package server

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/stockroom/internal/database"
	"github.com/aristath/stockroom/internal/modules/rooms"
	"github.com/aristath/stockroom/internal/server/respond"
	"github.com/aristath/stockroom/internal/version"
)

// TaskCounter reports how many room timers are armed. Implemented by the
// scheduler's room clock.
type TaskCounter interface {
	TaskCount() int
}

// SystemHandlers serves health and status endpoints.
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	dbs       []*database.DB
	roomRepo  *rooms.RoomRepository
	clock     TaskCounter
	startTime time.Time
}

// NewSystemHandlers creates system handlers.
func NewSystemHandlers(log zerolog.Logger, dataDir string, dbs []*database.DB, roomRepo *rooms.RoomRepository, clock TaskCounter) *SystemHandlers {
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		dbs:       dbs,
		roomRepo:  roomRepo,
		clock:     clock,
		startTime: time.Now(),
	}
}

// DatabaseStatus describes one open database in the status response.
type DatabaseStatus struct {
	Name      string  `json:"name"`
	SizeMB    float64 `json:"size_mb"`
	WALSizeMB float64 `json:"wal_size_mb"`
	PageCount int64   `json:"page_count"`
}

// SystemStatusResponse is the /system/status payload.
type SystemStatusResponse struct {
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	CPUPercent    float64          `json:"cpu_percent"`
	MemoryPercent float64          `json:"memory_percent"`
	DataDirMB     float64          `json:"data_dir_mb"`
	Databases     []DatabaseStatus `json:"databases"`
	Rooms         map[string]int   `json:"rooms"`
	ArmedTimers   int              `json:"armed_timers"`
}

// HandleHealth reports whether every database answers a ping. The full
// integrity check is too expensive for a polled endpoint; QuickCheck only
// pings.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	for _, db := range h.dbs {
		if err := db.QuickCheck(r.Context()); err != nil {
			h.log.Error().Err(err).Str("database", db.Name()).Msg("Health check failed")
			respond.JSON(w, http.StatusServiceUnavailable, map[string]string{
				"status":   "unhealthy",
				"database": db.Name(),
			})
			return
		}
	}

	respond.JSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HandleSystemStatus returns process and storage statistics.
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.systemStats()

	dbStatuses := make([]DatabaseStatus, 0, len(h.dbs))
	for _, db := range h.dbs {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}
		dbStatuses = append(dbStatuses, DatabaseStatus{
			Name:      db.Name(),
			SizeMB:    float64(stats.SizeBytes) / 1024 / 1024,
			WALSizeMB: float64(stats.WALSizeBytes) / 1024 / 1024,
			PageCount: stats.PageCount,
		})
	}

	roomCounts, err := h.roomRepo.CountByStatus(r.Context())
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to count rooms")
		roomCounts = map[string]int{}
	}

	armed := 0
	if h.clock != nil {
		armed = h.clock.TaskCount()
	}

	respond.JSON(w, http.StatusOK, SystemStatusResponse{
		Version:       version.Version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		DataDirMB:     h.dirSize(h.dataDir),
		Databases:     dbStatuses,
		Rooms:         roomCounts,
		ArmedTimers:   armed,
	})
}

// systemStats samples CPU and RAM usage. The CPU sample window is 100ms so
// the endpoint stays fast enough for dashboard polling.
func (h *SystemHandlers) systemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// dirSize calculates total size of a directory in MB.
func (h *SystemHandlers) dirSize(dirPath string) float64 {
	var totalSize int64

	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})

	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}

	return float64(totalSize) / 1024 / 1024
}
