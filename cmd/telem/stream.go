package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/cli"
	"github.com/NotCoffee418/telem_cli/pkg/forwarder"
	"github.com/NotCoffee418/telem_cli/pkg/metrics"
	"github.com/NotCoffee418/telem_cli/pkg/monitor"
	"github.com/NotCoffee418/telem_cli/pkg/port_reader"
	"github.com/NotCoffee418/telem_cli/pkg/units"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/pflag"
)

type streamParams struct {
	sensorID  int
	port      string
	baud      uint
	batchSize int
	unit      string
	monitor   string
	checksum  bool
}

func (a *app) streamSerialCommand() *cli.Command {
	var params streamParams
	var fs *pflag.FlagSet

	return &cli.Command{
		Name:    "stream-serial",
		Summary: "Read live data from a serial device and push it in batches",
		Description: `Read newline-terminated numeric readings from a serial device (such as an
Arduino) and push them to the API in batches.

Each full batch is submitted with up to 3 attempts and then cleared,
delivered or not. Lines that are not finite numbers are skipped. Stop with
Ctrl-C; readings in an incomplete batch at that point are not sent.

With --monitor (or stream.monitor_listen in the config) a local HTTP server
shows the latest reading at /latest, broadcasts every reading on /ws and
serves Prometheus metrics on /metrics.`,
		Usage: "telem stream-serial --sensor-id <id> --unit <unit> [flags]",
		Examples: []cli.Example{
			{
				Description: "Stream distance readings from an Arduino",
				Command:     "telem stream-serial --sensor-id 3 --unit centimeters --port /dev/ttyACM0",
			},
			{
				Description: "Stream with a live monitor on port 9039",
				Command:     "telem stream-serial --sensor-id 3 --unit celsius --monitor :9039",
			},
		},
		Flags: a.flags("stream-serial", func(set *pflag.FlagSet) {
			fs = set
			set.IntVar(&params.sensorID, "sensor-id", 0, "sensor the readings belong to (required)")
			set.StringVar(&params.port, "port", "", "serial port of the device, e.g. /dev/ttyACM0 (default from config)")
			set.UintVar(&params.baud, "baud", 0, "baud rate (default from config)")
			set.IntVar(&params.batchSize, "batch-size", 0, "readings per submitted batch (default from config)")
			set.StringVar(&params.unit, "unit", "", "unit of the readings (required, see 'telem units')")
			set.StringVar(&params.monitor, "monitor", "", "address for the live monitor, e.g. :9039")
			set.BoolVar(&params.checksum, "checksum", false, "lines carry a !XXXX CRC16 suffix")
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem stream-serial --sensor-id <id> --unit <unit> [flags]"); err != nil {
				return err
			}
			if !fs.Changed("sensor-id") {
				return cli.Validation("--sensor-id is required")
			}
			if params.unit == "" {
				return cli.Validation("--unit is required (see 'telem units')")
			}
			unit, err := units.Resolve(params.unit)
			if err != nil {
				return cli.Validation("%w (see 'telem units')", err)
			}

			if err := a.setup(); err != nil {
				return err
			}
			a.applyStreamDefaults(&params, fs)
			return a.streamSerial(ctx, params, unit)
		},
	}
}

// applyStreamDefaults fills every flag that was not given from the config.
func (a *app) applyStreamDefaults(params *streamParams, fs *pflag.FlagSet) {
	if params.port == "" {
		params.port = a.cfg.Serial.Device
	}
	if params.baud == 0 {
		params.baud = a.cfg.Serial.Baudrate
	}
	if params.batchSize == 0 {
		params.batchSize = a.cfg.Stream.BatchSize
	}
	if params.monitor == "" {
		params.monitor = a.cfg.Stream.MonitorListen
	}
	if !fs.Changed("checksum") {
		params.checksum = a.cfg.Serial.LineChecksum
	}
}

func (a *app) streamSerial(ctx context.Context, params streamParams, unit units.Unit) error {
	client, err := a.client()
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	collectors, err := metrics.New(registry)
	if err != nil {
		return cli.Internal("registering metrics: %w", err)
	}

	var liveMonitor *monitor.Server
	if params.monitor != "" {
		liveMonitor = monitor.NewServer(registry, a.logger)
		if _, err := liveMonitor.Start(params.monitor); err != nil {
			return cli.Internal("starting monitor on %s: %w", params.monitor, err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			liveMonitor.Shutdown(shutdownCtx)
		}()
	}

	reporter := a.openReporter()
	defer reporter.Close()

	fwd, err := a.newStreamForwarder(params, client, collectors, reporter, liveMonitor)
	if err != nil {
		return cli.Validation("%w", err)
	}

	reader := port_reader.NewSerialReader(port_reader.Options{
		Port:         params.port,
		Unit:         unit,
		BaudRate:     params.baud,
		ReadTimeout:  a.cfg.Serial.ReadTimeout.Duration,
		SettleDelay:  a.cfg.Serial.SettleDelay.Duration,
		LineChecksum: params.checksum,
	}, port_reader.WithLogger(a.logger), port_reader.WithMetrics(collectors))

	fmt.Fprintf(a.stderr, "Attempting to read live data from %s (baud %d)\n", params.port, params.baud)

	err = forwarder.RunPipeline(ctx, reader, fwd, a.cfg.Stream.QueueSize)
	switch {
	case err == nil:
		a.logger.Info("serial stream ended")
		return nil
	case errors.Is(err, context.Canceled):
		a.logger.Info("stream stopped", "batches_delivered", reporter.delivered, "batches_dropped", reporter.dropped)
		return nil
	case errors.Is(err, port_reader.ErrOpenFailed):
		return cli.Internal("could not open serial port %s: %w", params.port, err)
	default:
		return cli.Internal("streaming from %s: %w", params.port, err)
	}
}

// newStreamForwarder builds the forwarder for a serial stream. Accepted
// readings are already logged by the serial reader; here they only go to
// the live monitor, when one is running.
func (a *app) newStreamForwarder(
	params streamParams,
	submitter forwarder.Submitter,
	collectors *metrics.Collectors,
	results *reporter,
	liveMonitor *monitor.Server,
) (*forwarder.Forwarder, error) {
	opts := []forwarder.Option{
		forwarder.WithLogger(a.logger),
		forwarder.WithMetrics(collectors),
		forwarder.WithResultHandler(results.Report),
	}
	if liveMonitor != nil {
		opts = append(opts, forwarder.WithReadingHandler(liveMonitor.Publish))
	}
	return forwarder.New(forwarder.Options{
		SensorID:        params.sensorID,
		BatchSize:       params.batchSize,
		RetryBackoff:    a.cfg.Stream.RetryBackoff.Duration,
		MaxRetryBackoff: a.cfg.Stream.MaxRetryBackoff.Duration,
	}, submitter, opts...)
}
