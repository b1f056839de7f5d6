// Package metrics holds the Prometheus collectors for a streaming session.
// Every method is safe to call on a nil *Collectors so components can be
// built without metrics in tests and one-shot commands.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type Collectors struct {
	LinesRead        prometheus.Counter
	LinesSkipped     prometheus.Counter
	ReadingsAccepted prometheus.Counter
	BatchesDelivered prometheus.Counter
	BatchesDropped   prometheus.Counter
	SubmitAttempts   prometheus.Counter
	BatchBufferSize  prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Collectors, error) {
	c := &Collectors{
		LinesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telem_lines_read_total",
			Help: "Total number of raw lines read from the serial port",
		}),
		LinesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telem_lines_skipped_total",
			Help: "Total number of lines skipped as empty or malformed",
		}),
		ReadingsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telem_readings_accepted_total",
			Help: "Total number of readings parsed from the serial port",
		}),
		BatchesDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telem_batches_delivered_total",
			Help: "Total number of batches accepted by the API",
		}),
		BatchesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telem_batches_dropped_total",
			Help: "Total number of batches dropped after exhausting retries",
		}),
		SubmitAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "telem_submit_attempts_total",
			Help: "Total number of batch submission calls",
		}),
		BatchBufferSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "telem_batch_buffer_size",
			Help: "Readings currently waiting in the batch buffer",
		}),
	}

	for _, collector := range []prometheus.Collector{
		c.LinesRead,
		c.LinesSkipped,
		c.ReadingsAccepted,
		c.BatchesDelivered,
		c.BatchesDropped,
		c.SubmitAttempts,
		c.BatchBufferSize,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collectors) LineRead() {
	if c == nil {
		return
	}
	c.LinesRead.Inc()
}

func (c *Collectors) LineSkipped() {
	if c == nil {
		return
	}
	c.LinesSkipped.Inc()
}

func (c *Collectors) ReadingAccepted() {
	if c == nil {
		return
	}
	c.ReadingsAccepted.Inc()
}

func (c *Collectors) SubmitAttempt() {
	if c == nil {
		return
	}
	c.SubmitAttempts.Inc()
}

func (c *Collectors) BatchDelivered() {
	if c == nil {
		return
	}
	c.BatchesDelivered.Inc()
}

func (c *Collectors) BatchDropped() {
	if c == nil {
		return
	}
	c.BatchesDropped.Inc()
}

func (c *Collectors) SetBufferSize(n int) {
	if c == nil {
		return
	}
	c.BatchBufferSize.Set(float64(n))
}
