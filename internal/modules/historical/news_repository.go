package historical

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
)

// newsColumns is the list of columns for the news_items table.
// Column order must match scanNewsItem.
const newsColumns = `id, ticker, published_at, headline, summary, source, sentiment`

// NewsRepository reads dated headlines from the news store.
type NewsRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewNewsRepository creates a new news repository
func NewNewsRepository(db *sql.DB, log zerolog.Logger) *NewsRepository {
	return &NewsRepository{
		db:  db,
		log: log.With().Str("repo", "news").Logger(),
	}
}

// Window returns items for a ticker published within the [from, to] calendar
// window (inclusive), newest first.
func (r *NewsRepository) Window(ctx context.Context, ticker, from, to string) ([]domain.NewsItem, error) {
	query := "SELECT " + newsColumns + ` FROM news_items
		WHERE ticker = ? AND date(published_at) >= ? AND date(published_at) <= ?
		ORDER BY published_at DESC`

	rows, err := r.db.QueryContext(ctx, query, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query news window for %s: %w", ticker, err)
	}
	defer rows.Close()

	return collectNewsItems(rows, ticker)
}

// Before returns up to limit items for a ticker published strictly before
// the given calendar date, newest first. Used to backfill thin windows.
func (r *NewsRepository) Before(ctx context.Context, ticker, before string, limit int) ([]domain.NewsItem, error) {
	if limit <= 0 {
		return nil, nil
	}

	query := "SELECT " + newsColumns + ` FROM news_items
		WHERE ticker = ? AND date(published_at) < ?
		ORDER BY published_at DESC
		LIMIT ?`

	rows, err := r.db.QueryContext(ctx, query, ticker, before, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query news backfill for %s: %w", ticker, err)
	}
	defer rows.Close()

	return collectNewsItems(rows, ticker)
}

func collectNewsItems(rows *sql.Rows, ticker string) ([]domain.NewsItem, error) {
	var items []domain.NewsItem
	for rows.Next() {
		item, err := scanNewsItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan news row for %s: %w", ticker, err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate news rows for %s: %w", ticker, err)
	}

	return items, nil
}

func scanNewsItem(rows *sql.Rows) (domain.NewsItem, error) {
	var item domain.NewsItem
	var publishedAt string
	var summary sql.NullString
	var sentiment sql.NullFloat64

	err := rows.Scan(
		&item.ID,
		&item.Ticker,
		&publishedAt,
		&item.Headline,
		&summary,
		&item.Source,
		&sentiment,
	)
	if err != nil {
		return item, err
	}

	ts, err := time.Parse(time.RFC3339, publishedAt)
	if err != nil {
		return item, fmt.Errorf("malformed published_at %q: %w", publishedAt, err)
	}
	item.PublishedAt = ts.UTC()

	if summary.Valid {
		item.Summary = summary.String
	}
	if sentiment.Valid {
		item.Sentiment = &sentiment.Float64
	}

	return item, nil
}
