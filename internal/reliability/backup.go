// Package reliability keeps the multiplayer state recoverable: nightly
// snapshot archives with checksummed metadata, local rotation, and optional
// upload to an S3-compatible bucket.
package reliability

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/config"
	"github.com/aristath/stockroom/internal/database"
	"github.com/aristath/stockroom/internal/events"
	"github.com/aristath/stockroom/internal/version"
)

const (
	archivePrefix = "stockroom-backup-"
	archiveSuffix = ".tar.gz"
	stampLayout   = "2006-01-02-150405"
)

// BackupService snapshots the multiplayer database into a compressed,
// checksummed archive. The read-only content databases are shipped with the
// deployment and are not part of the backup set.
type BackupService struct {
	db     *database.DB
	cfg    *config.BackupConfig
	store  *ObjectStore
	events *events.Manager
	log    zerolog.Logger
}

// BackupMetadata is the manifest written into every archive.
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

// BackupInfo describes one archive on disk.
type BackupInfo struct {
	Filename  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	SizeBytes int64     `json:"size_bytes"`
}

// NewBackupService creates the backup service. store may be nil, in which
// case archives stay local.
func NewBackupService(db *database.DB, cfg *config.BackupConfig, store *ObjectStore, eventManager *events.Manager, log zerolog.Logger) *BackupService {
	return &BackupService{
		db:     db,
		cfg:    cfg,
		store:  store,
		events: eventManager,
		log:    log.With().Str("service", "backup").Logger(),
	}
}

// Name implements the scheduler job interface.
func (s *BackupService) Name() string { return "nightly_backup" }

// Run implements the scheduler job interface.
func (s *BackupService) Run() error {
	_, err := s.CreateBackup(context.Background())
	return err
}

// CreateBackup produces one archive, rotates old ones and, when an object
// store is configured, mirrors both steps remotely. Returns the archive path.
func (s *BackupService) CreateBackup(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting backup")
	startTime := time.Now()

	if err := os.MkdirAll(s.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	stagingDir, err := os.MkdirTemp(s.cfg.Dir, "staging-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	// VACUUM INTO produces a compact, consistent snapshot without blocking
	// writers for the duration of the copy.
	snapshotPath := filepath.Join(stagingDir, s.db.Name()+".db")
	if err := s.db.VacuumInto(snapshotPath); err != nil {
		return "", fmt.Errorf("failed to snapshot %s: %w", s.db.Name(), err)
	}

	if err := verifySnapshot(snapshotPath); err != nil {
		return "", fmt.Errorf("snapshot failed verification: %w", err)
	}

	info, err := os.Stat(snapshotPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat snapshot: %w", err)
	}

	checksum, err := fileChecksum(snapshotPath)
	if err != nil {
		return "", fmt.Errorf("failed to checksum snapshot: %w", err)
	}

	metadata := BackupMetadata{
		Timestamp: startTime.UTC(),
		Version:   version.Version,
		Database:  s.db.Name() + ".db",
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}
	metadataPath := filepath.Join(stagingDir, "backup-metadata.json")
	if err := writeMetadata(metadataPath, metadata); err != nil {
		return "", fmt.Errorf("failed to write metadata: %w", err)
	}

	archiveName := archivePrefix + startTime.UTC().Format(stampLayout) + archiveSuffix
	archivePath := filepath.Join(s.cfg.Dir, archiveName)
	if err := createArchive(archivePath, snapshotPath, metadataPath); err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	archiveInfo, err := os.Stat(archivePath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	if err := s.rotateLocal(); err != nil {
		s.log.Error().Err(err).Msg("Local backup rotation failed")
	}

	if s.store != nil {
		if err := s.uploadAndRotate(ctx, archivePath, archiveName); err != nil {
			// The local archive is intact; remote failures should not
			// fail the whole backup.
			s.log.Error().Err(err).Msg("Remote backup upload failed")
		}
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("archive", archiveName).
		Int64("size_bytes", archiveInfo.Size()).
		Msg("Backup completed")

	s.events.Emit(events.BackupCompleted, "reliability", map[string]interface{}{
		"archive":    archiveName,
		"size_bytes": archiveInfo.Size(),
		"remote":     s.store != nil,
	})

	return archivePath, nil
}

// ListBackups returns the local archives, newest first.
func (s *BackupService) ListBackups() ([]BackupInfo, error) {
	entries, err := os.ReadDir(s.cfg.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var backups []BackupInfo
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stamp, ok := parseArchiveName(entry.Name())
		if !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		backups = append(backups, BackupInfo{
			Filename:  entry.Name(),
			Timestamp: stamp,
			SizeBytes: info.Size(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].Timestamp.After(backups[j].Timestamp)
	})

	return backups, nil
}

func (s *BackupService) rotateLocal() error {
	backups, err := s.ListBackups()
	if err != nil {
		return err
	}

	for i := s.cfg.Keep; i < len(backups); i++ {
		path := filepath.Join(s.cfg.Dir, backups[i].Filename)
		if err := os.Remove(path); err != nil {
			s.log.Error().Err(err).Str("archive", backups[i].Filename).Msg("Failed to remove old backup")
			continue
		}
		s.log.Info().Str("archive", backups[i].Filename).Msg("Old backup removed")
	}

	return nil
}

func (s *BackupService) uploadAndRotate(ctx context.Context, archivePath, archiveName string) error {
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	if err := s.store.Upload(ctx, archiveName, file); err != nil {
		return err
	}

	objects, err := s.store.List(ctx, archivePrefix)
	if err != nil {
		return err
	}

	remote := make([]BackupInfo, 0, len(objects))
	for _, obj := range objects {
		stamp, ok := parseArchiveName(obj.Key)
		if !ok {
			continue
		}
		remote = append(remote, BackupInfo{Filename: obj.Key, Timestamp: stamp, SizeBytes: obj.SizeBytes})
	}
	sort.Slice(remote, func(i, j int) bool {
		return remote[i].Timestamp.After(remote[j].Timestamp)
	})

	for i := s.cfg.Keep; i < len(remote); i++ {
		if err := s.store.Delete(ctx, remote[i].Filename); err != nil {
			s.log.Error().Err(err).Str("key", remote[i].Filename).Msg("Failed to delete remote backup")
		}
	}

	return nil
}

func parseArchiveName(name string) (time.Time, bool) {
	if !strings.HasPrefix(name, archivePrefix) || !strings.HasSuffix(name, archiveSuffix) {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, archivePrefix), archiveSuffix)
	t, err := time.Parse(stampLayout, stamp)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// verifySnapshot opens the snapshot file and runs an integrity check before
// the original is considered backed up.
func verifySnapshot(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return err
	}
	defer db.Close()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return err
	}
	if result != "ok" {
		return fmt.Errorf("integrity check returned %q", result)
	}
	return nil
}

func fileChecksum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func writeMetadata(path string, metadata BackupMetadata) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	return encoder.Encode(metadata)
}

func createArchive(archivePath string, files ...string) error {
	archiveFile, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}
	defer archiveFile.Close()

	gzipWriter := gzip.NewWriter(archiveFile)
	defer gzipWriter.Close()

	tarWriter := tar.NewWriter(gzipWriter)
	defer tarWriter.Close()

	for _, path := range files {
		if err := addFileToArchive(tarWriter, path); err != nil {
			return fmt.Errorf("failed to add %s to archive: %w", filepath.Base(path), err)
		}
	}

	return nil
}

func addFileToArchive(tarWriter *tar.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header := &tar.Header{
		Name:    filepath.Base(path),
		Size:    info.Size(),
		Mode:    int64(info.Mode()),
		ModTime: info.ModTime(),
	}

	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}

	_, err = io.Copy(tarWriter, file)
	return err
}
