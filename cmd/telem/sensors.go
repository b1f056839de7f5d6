package main

import (
	"context"

	"github.com/NotCoffee418/telem_cli/pkg/cli"
	"github.com/NotCoffee418/telem_cli/pkg/types"
	"github.com/spf13/pflag"
)

// sensorFlags binds the optional sensor attributes. Only flags that were
// actually given end up in the request.
type sensorFlags struct {
	fs          *pflag.FlagSet
	sensorType  string
	latitude    float64
	longitude   float64
	description string
	active      bool
	inactive    bool
}

func (s *sensorFlags) add(fs *pflag.FlagSet, withType bool) {
	s.fs = fs
	if withType {
		fs.StringVar(&s.sensorType, "type", "", "type of sensor")
	}
	fs.Float64Var(&s.latitude, "latitude", 0, "latitudinal coordinate in decimal format")
	fs.Float64Var(&s.longitude, "longitude", 0, "longitudinal coordinate in decimal format")
	fs.StringVar(&s.description, "description", "", "description of the sensor")
	fs.BoolVar(&s.active, "active", false, "set the sensor as active")
	fs.BoolVar(&s.inactive, "inactive", false, "set the sensor as inactive")
}

func (s *sensorFlags) input() (types.SensorInput, error) {
	var input types.SensorInput
	if s.fs.Changed("type") {
		input.Type = &s.sensorType
	}
	if s.fs.Changed("latitude") {
		input.Latitude = &s.latitude
	}
	if s.fs.Changed("longitude") {
		input.Longitude = &s.longitude
	}
	if s.fs.Changed("description") {
		input.Description = &s.description
	}
	if s.fs.Changed("active") && s.fs.Changed("inactive") {
		return input, cli.Validation("--active and --inactive are mutually exclusive")
	}
	if s.fs.Changed("active") {
		active := s.active
		input.IsActive = &active
	}
	if s.fs.Changed("inactive") {
		active := !s.inactive
		input.IsActive = &active
	}
	return input, nil
}

func (a *app) registerSensorCommand() *cli.Command {
	var sensor sensorFlags

	return &cli.Command{
		Name:    "register-sensor",
		Summary: "Register a new sensor",
		Usage:   "telem register-sensor <type> [flags]",
		Examples: []cli.Example{
			{
				Description: "Register an ultrasonic distance sensor",
				Command:     "telem register-sensor ultrasonic --latitude 52.37 --longitude 4.89 --description 'tank level'",
			},
		},
		Flags: a.flags("register-sensor", func(fs *pflag.FlagSet) {
			sensor.add(fs, false)
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem register-sensor <type> [flags]", "type"); err != nil {
				return err
			}
			input, err := sensor.input()
			if err != nil {
				return err
			}
			input.Type = &args[0]
			// New sensors are active unless told otherwise
			if input.IsActive == nil {
				active := true
				input.IsActive = &active
			}

			if err := a.setup(); err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			result, err := client.RegisterSensor(ctx, input)
			if err != nil {
				return apiError("registering sensor", err)
			}
			return a.print(result)
		},
	}
}

func (a *app) updateSensorCommand() *cli.Command {
	var sensor sensorFlags

	return &cli.Command{
		Name:    "update-sensor",
		Summary: "Update the attributes of a sensor",
		Usage:   "telem update-sensor <sensor_id> [flags]",
		Flags: a.flags("update-sensor", func(fs *pflag.FlagSet) {
			sensor.add(fs, true)
		}),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem update-sensor <sensor_id> [flags]", "sensor_id"); err != nil {
				return err
			}
			sensorID, err := parseSensorID(args[0])
			if err != nil {
				return err
			}
			input, err := sensor.input()
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
			result, err := client.UpdateSensor(ctx, sensorID, input)
			if err != nil {
				return apiError("updating sensor", err)
			}
			return a.print(result)
		},
	}
}

func (a *app) getSensorsCommand() *cli.Command {
	return &cli.Command{
		Name:    "get-sensors",
		Summary: "Show metadata for all sensors",
		Flags:   a.flags("get-sensors", nil),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem get-sensors"); err != nil {
				return err
			}
			if err := a.setup(); err != nil {
				return err
			}
			client, err := a.client()
			if err != nil {
				return err
			}
			result, err := client.GetSensors(ctx)
			if err != nil {
				return apiError("listing sensors", err)
			}
			return a.print(result)
		},
	}
}

func (a *app) getSensorCommand() *cli.Command {
	return &cli.Command{
		Name:    "get-sensor",
		Summary: "Show metadata for one sensor",
		Usage:   "telem get-sensor <sensor_id>",
		Flags:   a.flags("get-sensor", nil),
		Run: func(ctx context.Context, args []string) error {
			if err := expectArgs(args, "telem get-sensor <sensor_id>", "sensor_id"); err != nil {
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
			result, err := client.GetSensor(ctx, sensorID)
			if err != nil {
				return apiError("getting sensor", err)
			}
			return a.print(result)
		},
	}
}
