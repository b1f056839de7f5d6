package main

import (
	"context"
	"time"

	"github.com/NotCoffee418/telem_cli/pkg/aggregator"
	"github.com/NotCoffee418/telem_cli/pkg/cli"
	"github.com/NotCoffee418/telem_cli/pkg/historydb"
	"github.com/NotCoffee418/telem_cli/pkg/port_reader"
	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/NotCoffee418/telem_cli/pkg/units"
	"github.com/NotCoffee418/telem_cli/pkg/watcher"
	"github.com/spf13/pflag"
)

func (a *app) listPortsCommand() *cli.Command {
	return &cli.Command{
		Name:    "list-ports",
		Summary: "List the serial ports present on this machine",
		Flags:   a.flags("list-ports", nil),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem list-ports"); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			ports, err := port_reader.ListPorts()
			if err != nil {
				return cli.Internal("%w", err)
			}
			return a.print(ports)
		},
	}
}

type unitView struct {
	Name     string `json:"name" yaml:"name"`
	Symbol   string `json:"symbol" yaml:"symbol"`
	Category string `json:"category" yaml:"category"`
}

func (a *app) unitsCommand() *cli.Command {
	return &cli.Command{
		Name:    "units",
		Summary: "List the units accepted by --unit",
		Flags:   a.flags("units", nil),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem units"); err != nil {
				return err
			}
			format, err := cli.ParseOutputFormat(a.output)
			if err != nil {
				return err
			}
			a.format = format

			all := units.All()
			views := make([]unitView, 0, len(all))
			for _, u := range all {
				views = append(views, unitView{Name: u.Name, Symbol: u.Symbol, Category: string(u.Category)})
			}
			return a.print(views)
		},
	}
}

type hourlyView struct {
	aggregator.HourlySummary `yaml:",inline"`

	Hour         time.Time `json:"hour" yaml:"hour"`
	DeliveryRate float64   `json:"delivery_rate" yaml:"delivery_rate"`
}

func (a *app) historyCommand() *cli.Command {
	var (
		limit  int
		hourly bool
		since  time.Duration
	)

	return &cli.Command{
		Name:    "history",
		Summary: "Show recent batch submissions from the local history",
		Description: `Show recent batch submissions from the local history.

Every batch forwarded by stream-serial or push-file is recorded with its
outcome and attempt count. Readings themselves are not stored.`,
		Flags: a.flags("history", func(fs *pflag.FlagSet) {
			fs.IntVar(&limit, "limit", 20, "number of submissions to show")
			fs.BoolVar(&hourly, "hourly", false, "show per-hour rollups instead of single submissions")
			fs.DurationVar(&since, "since", 24*time.Hour, "how far back the hourly rollup reaches")
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem history [flags]"); err != nil {
				return err
			}
			if limit < 1 {
				return cli.Validation("--limit must be positive")
			}
			if err := a.setup(); err != nil {
				return err
			}

			db, err := historydb.Open(a.cfg.HistoryDb)
			if err != nil {
				return cli.Internal("opening history: %w", err)
			}
			defer db.Close()

			if !hourly {
				submissions, err := db.RecentSubmissions(ctx, limit)
				if err != nil {
					return cli.Internal("reading history: %w", err)
				}
				return a.print(submissions)
			}

			summaries, err := aggregator.HourlySummaries(ctx, db, time.Now().Add(-since))
			if err != nil {
				return cli.Internal("summarising history: %w", err)
			}
			views := make([]hourlyView, 0, len(summaries))
			for _, s := range summaries {
				views = append(views, hourlyView{
					Hour:          time.Unix(s.HourStart, 0).UTC(),
					HourlySummary: s,
					DeliveryRate:  s.DeliveryRate(),
				})
			}
			return a.print(views)
		},
	}
}

func (a *app) watchCommand() *cli.Command {
	var host string

	return &cli.Command{
		Name:    "watch",
		Summary: "Print readings from a running stream's live monitor",
		Description: `Connect to the live monitor of a running 'telem stream-serial --monitor'
and print every reading as it arrives. Lost connections are retried with
exponential backoff.`,
		Usage: "telem watch --host <host:port>",
		Flags: a.flags("watch", func(fs *pflag.FlagSet) {
			fs.StringVar(&host, "host", "localhost:9039", "host:port of the stream monitor")
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem watch --host <host:port>"); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}

			err := watcher.Listen(ctx, host, watcher.DefaultOptions(), func(reading types.Reading) {
				if err := a.print(reading); err != nil {
					a.logger.Warn("failed to print reading", "error", err)
				}
			}, a.logger)
			if err != nil {
				return cli.Internal("watching %s: %w", host, err)
			}
			return nil
		},
	}
}
