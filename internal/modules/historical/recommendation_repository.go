package historical

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
)

// recommendationColumns is the list of columns for the recommendations table.
// Column order must match scanRecommendation.
const recommendationColumns = `ticker, date, recommendation, confidence,
	technical_signal, sentiment_signal, risk_level, rationale_summary`

// RecommendationRepository reads advice rows from the agents store.
type RecommendationRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRecommendationRepository creates a new recommendation repository
func NewRecommendationRepository(db *sql.DB, log zerolog.Logger) *RecommendationRepository {
	return &RecommendationRepository{
		db:  db,
		log: log.With().Str("repo", "recommendations").Logger(),
	}
}

// On returns the advice row for a ticker/date, or nil when absent.
func (r *RecommendationRepository) On(ctx context.Context, ticker, date string) (*domain.Recommendation, error) {
	query := "SELECT " + recommendationColumns + ` FROM recommendations
		WHERE ticker = ? AND date = ?`

	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, ticker, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation for %s on %s: %w", ticker, date, err)
	}

	return rec, nil
}

// LatestOnOrBefore returns the most recent advice row dated on or before the
// given date, or nil when the store holds nothing that early.
func (r *RecommendationRepository) LatestOnOrBefore(ctx context.Context, ticker, date string) (*domain.Recommendation, error) {
	query := "SELECT " + recommendationColumns + ` FROM recommendations
		WHERE ticker = ? AND date <= ?
		ORDER BY date DESC
		LIMIT 1`

	rec, err := scanRecommendation(r.db.QueryRowContext(ctx, query, ticker, date))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation at or before %s for %s: %w", date, ticker, err)
	}

	return rec, nil
}

// Range returns all advice rows for a ticker within [from, to], keyed by date.
func (r *RecommendationRepository) Range(ctx context.Context, ticker, from, to string) (map[string]domain.Recommendation, error) {
	query := "SELECT " + recommendationColumns + ` FROM recommendations
		WHERE ticker = ? AND date >= ? AND date <= ?`

	rows, err := r.db.QueryContext(ctx, query, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query recommendation range for %s: %w", ticker, err)
	}
	defer rows.Close()

	out := make(map[string]domain.Recommendation)
	for rows.Next() {
		var rec domain.Recommendation
		err := rows.Scan(&rec.Ticker, &rec.Date, &rec.Label, &rec.Confidence,
			&rec.Technical, &rec.Sentiment, &rec.Risk, &rec.Summary)
		if err != nil {
			return nil, fmt.Errorf("failed to scan recommendation row for %s: %w", ticker, err)
		}
		out[rec.Date] = rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recommendation rows for %s: %w", ticker, err)
	}

	return out, nil
}

func scanRecommendation(row *sql.Row) (*domain.Recommendation, error) {
	var rec domain.Recommendation
	err := row.Scan(&rec.Ticker, &rec.Date, &rec.Label, &rec.Confidence,
		&rec.Technical, &rec.Sentiment, &rec.Risk, &rec.Summary)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
