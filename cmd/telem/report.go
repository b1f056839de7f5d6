package main

import (
	"context"
	"encoding/json"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/cli"
	"github.com/NotCoffee418/telem_cli/pkg/forwarder"
	"github.com/NotCoffee418/telem_cli/pkg/historydb"
)

// batchReport is the printed form of a forwarded batch.
type batchReport struct {
	Status   string    `json:"status" yaml:"status"`
	SensorID int       `json:"sensor_id" yaml:"sensor_id"`
	Size     int       `json:"size" yaml:"size"`
	Attempts int       `json:"attempts" yaml:"attempts"`
	Finished time.Time `json:"finished_at" yaml:"finished_at"`
	Response any       `json:"response,omitempty" yaml:"response,omitempty"`
	Error    string    `json:"error,omitempty" yaml:"error,omitempty"`
}

// reporter prints every batch outcome and records it in the submission
// history when that is available.
type reporter struct {
	app     *app
	history *historydb.DB

	delivered int
	dropped   int
}

// openReporter opens the history database. A history that cannot be
// opened only costs the record, so streaming carries on without it.
func (a *app) openReporter() *reporter {
	r := &reporter{app: a}
	history, err := historydb.Open(a.cfg.HistoryDb)
	if err != nil {
		a.logger.Warn("submission history unavailable", "path", a.cfg.HistoryDb, "error", err)
		return r
	}
	r.history = history
	return r
}

func (r *reporter) Report(result forwarder.Result) {
	if result.Delivered() {
		r.delivered++
	} else {
		r.dropped++
	}

	report := batchReport{
		Status:   result.Status.String(),
		SensorID: result.SensorID,
		Size:     result.Size,
		Attempts: result.Attempts,
		Finished: result.FinishedAt,
	}
	if len(result.Response) > 0 {
		var response any
		if err := json.Unmarshal(result.Response, &response); err == nil {
			report.Response = response
		}
	}
	if result.Err != nil {
		report.Error = result.Err.Error()
	}
	if err := cli.Print(r.app.stdout, r.app.format, report); err != nil {
		r.app.logger.Warn("failed to print batch result", "error", err)
	}

	if r.history == nil {
		return
	}
	// Recorded even while shutting down
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.history.RecordResult(ctx, result); err != nil {
		r.app.logger.Warn("failed to record submission", "error", err)
	}
}

func (r *reporter) Close() {
	if r.history != nil {
		r.history.Close()
	}
}
