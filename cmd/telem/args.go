package main

import (
	"strconv"

	"github.com/NotCoffee418/telem_cli/pkg/cli"
)

func expectArgs(args []string, usage string, names ...string) error {
	if len(args) < len(names) {
		return cli.Validation("missing argument <%s>\n\nUsage: %s", names[len(args)], usage)
	}
	if len(args) > len(names) {
		return cli.Validation("unexpected argument: %s\n\nUsage: %s", args[len(names)], usage)
	}
	return nil
}

func parseSensorID(arg string) (int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return 0, cli.Validation("invalid sensor id %q: must be a positive integer", arg)
	}
	return id, nil
}
