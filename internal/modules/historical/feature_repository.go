package historical

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
)

// featureColumns is the list of columns for the technical_features table.
// Column order must match scanSnapshot.
const featureColumns = `momentum, trend, range_pct, reversion, volume_ratio, rsi`

// FeatureRepository reads precomputed technical snapshots from the features
// store. A missing row means the pipeline had not warmed up for that date;
// callers receive nil, never a zeroed snapshot.
type FeatureRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewFeatureRepository creates a new feature repository
func NewFeatureRepository(db *sql.DB, log zerolog.Logger) *FeatureRepository {
	return &FeatureRepository{
		db:  db,
		log: log.With().Str("repo", "features").Logger(),
	}
}

// On returns the snapshot for a ticker/date, or nil when absent.
func (r *FeatureRepository) On(ctx context.Context, ticker, date string) (*domain.TechnicalSnapshot, error) {
	query := "SELECT " + featureColumns + ` FROM technical_features
		WHERE ticker = ? AND date = ?`

	snap, err := scanSnapshot(r.db.QueryRowContext(ctx, query, ticker, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query features for %s on %s: %w", ticker, date, err)
	}

	return snap, nil
}

// LatestOnOrBefore returns the most recent snapshot dated on or before the
// given date, or nil when the store holds nothing that early.
func (r *FeatureRepository) LatestOnOrBefore(ctx context.Context, ticker, date string) (*domain.TechnicalSnapshot, error) {
	query := "SELECT " + featureColumns + ` FROM technical_features
		WHERE ticker = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1`

	snap, err := scanSnapshot(r.db.QueryRowContext(ctx, query, ticker, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query features at or before %s for %s: %w", date, ticker, err)
	}

	return snap, nil
}

// Range returns all snapshots for a ticker within [from, to], keyed by date.
func (r *FeatureRepository) Range(ctx context.Context, ticker, from, to string) (map[string]domain.TechnicalSnapshot, error) {
	query := "SELECT date, " + featureColumns + ` FROM technical_features
		WHERE ticker = ? AND date >= ? AND date <= ?`

	rows, err := r.db.QueryContext(ctx, query, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature range for %s: %w", ticker, err)
	}
	defer rows.Close()

	out := make(map[string]domain.TechnicalSnapshot)
	for rows.Next() {
		var date string
		var snap domain.TechnicalSnapshot
		err := rows.Scan(&date, &snap.Momentum, &snap.Trend, &snap.RangePct,
			&snap.Reversion, &snap.VolumeRatio, &snap.RSI)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature row for %s: %w", ticker, err)
		}
		out[date] = snap
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feature rows for %s: %w", ticker, err)
	}

	return out, nil
}

func scanSnapshot(row *sql.Row) (*domain.TechnicalSnapshot, error) {
	var snap domain.TechnicalSnapshot
	err := row.Scan(&snap.Momentum, &snap.Trend, &snap.RangePct,
		&snap.Reversion, &snap.VolumeRatio, &snap.RSI)
	if err != nil {
		return nil, err
	}
	return &snap, nil
}
