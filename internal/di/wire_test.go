package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stockroom/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		DataDir:          dir,
		Port:             8000,
		LogLevel:         "error",
		EarliestGameDate: "2025-01-01",
		DefaultTickers:   []string{"AAPL", "MSFT"},
		RoomRetention:    30,
		Backup: &config.BackupConfig{
			Enabled: false,
			Dir:     filepath.Join(dir, "backups"),
			Keep:    14,
		},
	}
}

func TestWire_BuildsFullContainer(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	container, err := Wire(testConfig(t), log)
	require.NoError(t, err)
	defer container.Close()

	assert.Len(t, container.Databases(), 5)
	for _, db := range container.Databases() {
		require.NotNil(t, db)
		assert.NoError(t, db.QuickCheck(context.Background()))
	}

	assert.NotNil(t, container.Gateway)
	assert.NotNil(t, container.SliceCache)
	assert.NotNil(t, container.RoomService)
	assert.NotNil(t, container.RoomClock)
	assert.NotNil(t, container.Scheduler)
	assert.NotNil(t, container.BackupService)
}

func TestWire_FreshDatabasesAreMigrated(t *testing.T) {
	log := zerolog.New(nil).Level(zerolog.Disabled)

	container, err := Wire(testConfig(t), log)
	require.NoError(t, err)
	defer container.Close()

	// The multiplayer schema exists, so the repositories work immediately.
	counts, err := container.RoomRepo.CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Empty(t, counts)
}
