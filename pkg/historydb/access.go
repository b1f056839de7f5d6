package historydb

import (
	"context"
	"fmt"
)

func (d *DB) InsertSubmission(ctx context.Context, submission *Submission) error {
	result, err := d.db.ExecContext(ctx,
		"INSERT INTO submissions "+
			"(timestamp, sensor_id, reading_count, attempts, status, reason) "+
			"VALUES (?, ?, ?, ?, ?, ?)",
		submission.Timestamp,
		submission.SensorID,
		submission.ReadingCount,
		submission.Attempts,
		submission.Status,
		submission.Reason,
	)
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		submission.ID = id
	}
	return nil
}

// RecentSubmissions returns up to limit rows, newest first.
func (d *DB) RecentSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, timestamp, sensor_id, reading_count, attempts, status, reason
		FROM submissions
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var submissions []Submission
	for rows.Next() {
		var s Submission
		if err := rows.Scan(&s.ID, &s.Timestamp, &s.SensorID, &s.ReadingCount, &s.Attempts, &s.Status, &s.Reason); err != nil {
			return nil, err
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}
