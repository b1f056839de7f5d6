package main

import (
	"context"
	"errors"
	"math"
	"strconv"

	"github.com/NotCoffee418/telem_cli/pkg/cli"
	"github.com/NotCoffee418/telem_cli/pkg/filesource"
	"github.com/NotCoffee418/telem_cli/pkg/forwarder"
	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/NotCoffee418/telem_cli/pkg/units"
	"github.com/spf13/pflag"
)

func (a *app) pushSensorDataCommand() *cli.Command {
	const usage = "telem push-sensor-data <sensor_id> <unit> <value>"

	return &cli.Command{
		Name:    "push-sensor-data",
		Summary: "Send a single reading for a sensor",
		Description: `Send a single reading for a sensor.

The unit is a friendly name (see 'telem units') or its symbol.`,
		Usage: usage,
		Examples: []cli.Example{
			{Command: "telem push-sensor-data 3 celsius 21.5"},
		},
		Flags: a.flags("push-sensor-data", nil),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, usage, "sensor_id", "unit", "value"); err != nil {
				return err
			}
			sensorID, err := parseSensorID(args[0])
			if err != nil {
				return err
			}
			unit, err := units.Resolve(args[1])
			if err != nil {
				return cli.Validation("%w (see 'telem units')", err)
			}
			value, err := strconv.ParseFloat(args[2], 64)
			if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
				return cli.Validation("invalid value %q: must be a finite number", args[2])
			}

			if err := a.setup(); err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			batch := types.ReadingBatch{Readings: []types.Reading{{Unit: unit.Symbol, Value: value}}}
			result, err := client.PushSensorData(ctx, sensorID, batch)
			if err != nil {
				return apiError("pushing reading", err)
			}
			return a.print(result)
		},
	}
}

func (a *app) getSensorDataCommand() *cli.Command {
	return &cli.Command{
		Name:    "get-sensor-data",
		Summary: "Show all data for a sensor",
		Usage:   "telem get-sensor-data <sensor_id>",
		Flags:   a.flags("get-sensor-data", nil),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem get-sensor-data <sensor_id>", "sensor_id"); err != nil {
				return err
			}
			sensorID, err := parseSensorID(args[0])
			if err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			result, err := client.GetSensorData(ctx, sensorID)
			if err != nil {
				return apiError("getting sensor data", err)
			}
			return a.print(result)
		},
	}
}

func (a *app) pushFileCommand() *cli.Command {
	const usage = "telem push-file <sensor_id> <path> [flags]"
	var (
		format    string
		unitName  string
		batchSize int
	)

	return &cli.Command{
		Name:    "push-file",
		Summary: "Push readings stored in a CSV or JSON file",
		Description: `Push readings stored in a CSV or JSON file, batched like a serial stream.

CSV rows are either "value" (with --unit) or "unit,value"; lines starting
with # are comments. JSON is an array of {"unit","value"} objects or an
object with a "readings" array. Malformed rows are skipped. The trailing
partial batch is sent once the file is exhausted.`,
		Usage: usage,
		Examples: []cli.Example{
			{Description: "Replay a CSV of centimetre readings", Command: "telem push-file 3 levels.csv --unit centimeters"},
		},
		Flags: a.flags("push-file", func(fs *pflag.FlagSet) {
			fs.StringVar(&format, "format", "", "file format: csv or json (default: by extension)")
			fs.StringVar(&unitName, "unit", "", "unit for rows that carry only a value")
			fs.IntVar(&batchSize, "batch-size", 0, "readings per submitted batch (default from config)")
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, usage, "sensor_id", "path"); err != nil {
				return err
			}
			sensorID, err := parseSensorID(args[0])
			if err != nil {
				return err
			}
			source := &filesource.FileSource{Path: args[1], Format: filesource.Format(format)}
			if unitName != "" {
				unit, err := units.Resolve(unitName)
				if err != nil {
					return cli.Validation("%w (see 'telem units')", err)
				}
				source.DefaultUnit = &unit
			}

			if err := a.setup(); err != nil {
				return err
			}
			source.Logger = a.logger
			if batchSize == 0 {
				batchSize = a.cfg.Stream.BatchSize
			}

			client, err := a.client()
			if err != nil {
				return err
			}
			reporter := a.openReporter()
			defer reporter.Close()

			fwd, err := forwarder.New(forwarder.Options{
				SensorID:        sensorID,
				BatchSize:       batchSize,
				RetryBackoff:    a.cfg.Stream.RetryBackoff.Duration,
				MaxRetryBackoff: a.cfg.Stream.MaxRetryBackoff.Duration,
			}, client,
				forwarder.WithLogger(a.logger),
				forwarder.WithResultHandler(reporter.Report),
			)
			if err != nil {
				return cli.Validation("%w", err)
			}

			if err := forwarder.RunPipeline(ctx, source, fwd, a.cfg.Stream.QueueSize); err != nil {
				if errors.Is(err, filesource.ErrUnknownFormat) || errors.Is(err, units.ErrUnknownUnit) {
					return cli.Validation("%w", err)
				}
				return cli.Internal("pushing %s: %w", args[1], err)
			}
			fwd.Flush(ctx)

			a.logger.Info("file pushed",
				"path", args[1],
				"batches_delivered", reporter.delivered,
				"batches_dropped", reporter.dropped,
				"rows_skipped", source.Skipped(),
			)
			if reporter.dropped > 0 {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}
