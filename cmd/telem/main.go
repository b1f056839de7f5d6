// telem is the command line client for the telemetry API. Besides the
// one-shot API calls it streams readings from a serial device and
// forwards them in batches.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotCoffee418/telem_cli/pkg/apiclient"
	"github.com/NotCoffee418/telem_cli/pkg/cli"
	"github.com/NotCoffee418/telem_cli/pkg/config"
	"github.com/NotCoffee418/telem_cli/pkg/pathing"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	// After the first signal the default handlers are restored, so a second
	// Ctrl-C kills the process even if shutdown hangs
	context.AfterFunc(ctx, stop)
	err := newApp(os.Stdout, os.Stderr).root().Execute(ctx, os.Args[1:])
	stop()

	code, printErr := cli.ExitCode(err)
	if printErr {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}
	os.Exit(code)
}

// app carries the global flags and what is derived from them for the
// command being run.
type app struct {
	configPath string
	apiURL     string
	output     string
	logLevel   string

	stdout io.Writer
	stderr io.Writer

	cfg    *config.Config
	format cli.OutputFormat
	logger *slog.Logger
	// Tests swap in a logger that does not depend on the terminal
	newLogger func(level string) *slog.Logger
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		configPath: pathing.GetConfigPath(),
		output:     string(cli.OutputJSON),
		stdout:     stdout,
		stderr:     stderr,
		newLogger:  cli.NewLogger,
	}
}

func (a *app) root() *cli.Command {
	return &cli.Command{
		Name:    "telem",
		Summary: "Telemetry CLI: manage sensors and push their readings to the API",
		Flags: func() *pflag.FlagSet {
			fs := pflag.NewFlagSet("telem", pflag.ContinueOnError)
			a.addGlobalFlags(fs)
			return fs
		},
		Output: a.stderr,
		Subcommands: []*cli.Command{
			a.loginCommand(),
			a.logoutCommand(),
			a.registerCommand(),
			a.registerSensorCommand(),
			a.updateSensorCommand(),
			a.getSensorsCommand(),
			a.getSensorCommand(),
			a.pushSensorDataCommand(),
			a.getSensorDataCommand(),
			a.pushFileCommand(),
			a.streamSerialCommand(),
			a.listPortsCommand(),
			a.unitsCommand(),
			a.historyCommand(),
			a.watchCommand(),
		},
	}
}

// addGlobalFlags registers the global flags on a command's flag set. The
// current values are used as defaults so flags given before the command
// name survive the command's own parse.
func (a *app) addGlobalFlags(fs *pflag.FlagSet) {
	fs.StringVar(&a.configPath, "config", a.configPath, "path to the config file")
	fs.StringVar(&a.apiURL, "api-url", a.apiURL, "base URL of the backend API (overrides config and environment)")
	fs.StringVarP(&a.output, "output", "o", a.output, "output format: json or yaml")
	fs.StringVar(&a.logLevel, "log-level", a.logLevel, "log level: debug, info, warn or error")
}

func (a *app) flags(name string, add func(fs *pflag.FlagSet)) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
		if add != nil {
			add(fs)
		}
		a.addGlobalFlags(fs)
		return fs
	}
}

// setup loads the config and applies the global flags on top of it.
func (a *app) setup() error {
	format, err := cli.ParseOutputFormat(a.output)
	if err != nil {
		return err
	}
	a.format = format

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return cli.Internal("loading config: %w", err)
	}
	if a.apiURL != "" {
		cfg.APIURL = a.apiURL
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	a.cfg = cfg
	a.logger = a.newLogger(cfg.LogLevel)
	return nil
}

func (a *app) client() (*apiclient.Client, error) {
	client, err := apiclient.New(apiclient.Options{
		BaseURL:   a.cfg.APIURL,
		TokenPath: a.cfg.TokenPath,
		Timeout:   a.cfg.HTTPTimeout.Duration,
	})
	if err != nil {
		return nil, cli.Internal("creating API client: %w", err)
	}
	return client, nil
}

func (a *app) print(value any) error {
	return cli.Print(a.stdout, a.format, value)
}

// apiError classifies an error from an API call.
func apiError(action string, err error) error {
	return cli.Internal("%s: %w", action, err)
}
