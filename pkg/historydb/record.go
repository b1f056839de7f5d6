package historydb

import (
	"context"

	"github.com/NotCoffee418/telem_cli/pkg/forwarder"
)

// RecordResult stores the outcome of one forwarded batch.
func (d *DB) RecordResult(ctx context.Context, result forwarder.Result) error {
	submission := &Submission{
		Timestamp:    result.FinishedAt.UTC().Unix(),
		SensorID:     result.SensorID,
		ReadingCount: result.Size,
		Attempts:     result.Attempts,
		Status:       StatusDelivered,
	}
	if !result.Delivered() {
		submission.Status = StatusDropped
		if result.Err != nil {
			submission.Reason = result.Err.Error()
		}
	}
	return d.InsertSubmission(ctx, submission)
}
