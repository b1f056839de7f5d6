package forwarder

import (
	"context"
	"encoding/json"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/types"
)

// Submitter delivers one batch for a sensor. apiclient.Client satisfies it.
type Submitter interface {
	PushSensorData(ctx context.Context, sensorID int, batch types.ReadingBatch) (json.RawMessage, error)
}

// Source produces readings into out until it runs dry or ctx ends.
type Source interface {
	Stream(ctx context.Context, out chan<- types.Reading) error
}

type Status int

const (
	StatusDelivered Status = iota + 1
	StatusDropped
)

func (s Status) String() string {
	switch s {
	case StatusDelivered:
		return "delivered"
	case StatusDropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Result is the outcome of one batch after its attempt budget.
type Result struct {
	Status     Status
	SensorID   int
	Size       int
	Attempts   int
	Response   json.RawMessage
	Err        error
	FinishedAt time.Time
}

func (r Result) Delivered() bool {
	return r.Status == StatusDelivered
}

type Options struct {
	SensorID  int
	BatchSize int
	// Delay before the first retry, doubled for each further retry.
	// Zero retries immediately.
	RetryBackoff    time.Duration
	MaxRetryBackoff time.Duration
}
