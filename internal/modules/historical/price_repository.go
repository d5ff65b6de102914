package historical

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/stockroom/internal/domain"
)

// priceColumns is the list of columns for the daily_prices table.
// Column order must match scanMarketDay.
const priceColumns = `ticker, date, open, high, low, close, volume`

// PriceRepository reads daily OHLCV bars from the market_data store.
// The store is read-only at serve time; there are no write paths here.
type PriceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(db *sql.DB, log zerolog.Logger) *PriceRepository {
	return &PriceRepository{
		db:  db,
		log: log.With().Str("repo", "prices").Logger(),
	}
}

// Range returns the bars for a ticker within [from, to], ascending by date.
// Dates with no bar are simply missing from the result.
func (r *PriceRepository) Range(ctx context.Context, ticker, from, to string) ([]domain.MarketDay, error) {
	query := "SELECT " + priceColumns + ` FROM daily_prices
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date ASC`

	rows, err := r.db.QueryContext(ctx, query, ticker, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	var days []domain.MarketDay
	for rows.Next() {
		day, err := scanMarketDay(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan price row for %s: %w", ticker, err)
		}
		days = append(days, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate price rows for %s: %w", ticker, err)
	}

	return days, nil
}

// Exists reports whether the ticker is known to the store, either in the
// tickers catalog or by having at least one price bar.
func (r *PriceRepository) Exists(ctx context.Context, ticker string) (bool, error) {
	query := `SELECT
		EXISTS(SELECT 1 FROM tickers WHERE symbol = ?)
		OR EXISTS(SELECT 1 FROM daily_prices WHERE ticker = ?)`

	var exists bool
	if err := r.db.QueryRowContext(ctx, query, ticker, ticker).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check ticker %s: %w", ticker, err)
	}

	return exists, nil
}

// LatestCommonDate returns the most recent date on which every given ticker
// has a price bar, or "" when no such date exists.
func (r *PriceRepository) LatestCommonDate(ctx context.Context, tickers []string) (string, error) {
	if len(tickers) == 0 {
		return "", nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(tickers)), ",")
	query := fmt.Sprintf(`SELECT date FROM daily_prices
		WHERE ticker IN (%s)
		GROUP BY date
		HAVING COUNT(DISTINCT ticker) = ?
		ORDER BY date DESC
		LIMIT 1`, placeholders)

	args := make([]interface{}, 0, len(tickers)+1)
	for _, t := range tickers {
		args = append(args, t)
	}
	args = append(args, len(tickers))

	var date string
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&date)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to find latest common date: %w", err)
	}

	return date, nil
}

// scanMarketDay scans a row into a MarketDay. Works for both *sql.Row and
// *sql.Rows via the scanner interface.
func scanMarketDay(row interface{ Scan(...interface{}) error }) (domain.MarketDay, error) {
	var day domain.MarketDay
	err := row.Scan(
		&day.Ticker,
		&day.Date,
		&day.Open,
		&day.High,
		&day.Low,
		&day.Close,
		&day.Volume,
	)
	return day, err
}
