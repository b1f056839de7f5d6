package aggregator

import (
	"context"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/historydb"
)

// roundToHourStart returns the Unix timestamp of the start of the hour for the given time
func roundToHourStart(t time.Time) int64 {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, time.UTC).Unix()
}

// HourlySummaries groups submission history per UTC hour, starting at the
// hour containing since. Hours without submissions are left out.
func HourlySummaries(ctx context.Context, db *historydb.DB, since time.Time) ([]HourlySummary, error) {
	query := `
		SELECT
			(timestamp / 3600) * 3600 AS hour_start,
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = ? THEN reading_count ELSE 0 END),
			SUM(CASE WHEN status = ? THEN reading_count ELSE 0 END),
			SUM(attempts)
		FROM submissions
		WHERE timestamp >= ?
		GROUP BY hour_start
		ORDER BY hour_start
	`

	rows, err := db.SQL().QueryContext(ctx, query,
		historydb.StatusDelivered,
		historydb.StatusDropped,
		historydb.StatusDelivered,
		historydb.StatusDropped,
		roundToHourStart(since),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []HourlySummary
	for rows.Next() {
		var s HourlySummary
		if err := rows.Scan(
			&s.HourStart,
			&s.BatchesDelivered,
			&s.BatchesDropped,
			&s.ReadingsDelivered,
			&s.ReadingsDropped,
			&s.Attempts,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Totals adds up a set of hourly summaries. HourStart is the earliest hour.
func Totals(summaries []HourlySummary) HourlySummary {
	var total HourlySummary
	for i, s := range summaries {
		if i == 0 || s.HourStart < total.HourStart {
			total.HourStart = s.HourStart
		}
		total.BatchesDelivered += s.BatchesDelivered
		total.BatchesDropped += s.BatchesDropped
		total.ReadingsDelivered += s.ReadingsDelivered
		total.ReadingsDropped += s.ReadingsDropped
		total.Attempts += s.Attempts
	}
	return total
}

