package main

import (
	"context"

	"github.com/NotCoffee418/telem_cli/pkg/cli"
	"github.com/spf13/pflag"
)

func (a *app) loginCommand() *cli.Command {
	var passwordFile string

	return &cli.Command{
		Name:    "login",
		Summary: "Authenticate and store the access token",
		Description: `Log in to the telemetry API and save the access token locally.

The token is written to token_path (default ~/.telem_token) with mode 0600
and sent as a bearer token by every later command. The password is
prompted for with echo disabled unless given as an argument or through
--password-file.`,
		Usage: "telem login <username> [password] [flags]",
		Examples: []cli.Example{
			{Description: "Log in interactively", Command: "telem login alice"},
			{Description: "Log in with the password from a file", Command: "telem login alice --password-file ~/.telem_pw"},
		},
		Flags: a.flags("login", func(fs *pflag.FlagSet) {
			fs.StringVar(&passwordFile, "password-file", "", "file containing the password, or - to prompt")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) < 1 || len(args) > 2 {
				return cli.Validation("expected <username> [password]\n\nUsage: telem login <username> [password] [flags]")
			}
			if err := a.setup(); err != nil {
				return err
			}

			password, err := passwordArg(args, 1, passwordFile)
			if err != nil {
				return err
			}

			client, err := a.client()
			if err != nil {
				return err
			}
			result, err := client.Login(ctx, args[0], password)
			if err != nil {
				return apiError("login failed", err)
			}
			a.logger.Info("logged in", "username", args[0], "token_path", a.cfg.TokenPath)
			return a.print(result)
		},
	}
}

func (a *app) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:    "logout",
		Summary: "Remove the stored access token",
		Flags:   a.flags("logout", nil),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem logout"); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			if err := client.Logout(); err != nil {
				return cli.Internal("removing token: %w", err)
			}
			return a.print(map[string]string{"status": "logged out"})
		},
	}
}

func (a *app) registerCommand() *cli.Command {
	var passwordFile string

	return &cli.Command{
		Name:    "register",
		Summary: "Create a new user account",
		Usage:   "telem register <email> <username> [password] [flags]",
		Flags: a.flags("register", func(fs *pflag.FlagSet) {
			fs.StringVar(&passwordFile, "password-file", "", "file containing the password, or - to prompt")
		}),
		Run: func(ctx context.Context, args []string) error {
			if len(args) < 2 || len(args) > 3 {
				return cli.Validation("expected <email> <username> [password]\n\nUsage: telem register <email> <username> [password] [flags]")
			}
			if err := a.setup(); err != nil {
				return err
			}

			password, err := passwordArg(args, 2, passwordFile)
			if err != nil {
				return err
			}

			client, err := a.client()
			if err != nil {
				return err
			}
			result, err := client.Register(ctx, args[0], args[1], password)
			if err != nil {
				return apiError("registration failed", err)
			}
			return a.print(result)
		},
	}
}

// passwordArg returns args[index] when present, otherwise reads the
// password from passwordFile or the terminal.
func passwordArg(args []string, index int, passwordFile string) (string, error) {
	if len(args) > index {
		return args[index], nil
	}
	return cli.ReadPassword("Password: ", passwordFile)
}
