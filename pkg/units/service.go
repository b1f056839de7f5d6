package units

import (
	"fmt"
	"sort"
)

var ErrUnknownUnit = fmt.Errorf("unknown unit")

var all = []Unit{
	// Length / distance
	{Name: "meters", Symbol: "m", Category: CategoryLength},
	{Name: "centimeters", Symbol: "cm", Category: CategoryLength},
	{Name: "millimeters", Symbol: "mm", Category: CategoryLength},
	{Name: "inches", Symbol: "in", Category: CategoryLength},
	{Name: "feet", Symbol: "ft", Category: CategoryLength},

	// Temperature
	{Name: "celsius", Symbol: "°C", Category: CategoryTemperature},
	{Name: "fahrenheit", Symbol: "°F", Category: CategoryTemperature},
	{Name: "kelvin", Symbol: "K", Category: CategoryTemperature},

	// Pressure
	{Name: "pascal", Symbol: "Pa", Category: CategoryPressure},
	{Name: "bar", Symbol: "bar", Category: CategoryPressure},
	{Name: "psi", Symbol: "psi", Category: CategoryPressure},

	// Acceleration / motion
	{Name: "meters_per_second2", Symbol: "m/s^2", Category: CategoryMotion},
	{Name: "g_force", Symbol: "g", Category: CategoryMotion},
	{Name: "meters_per_second", Symbol: "m/s", Category: CategoryMotion},

	// Magnetic / electric
	{Name: "tesla", Symbol: "T", Category: CategoryElectromagnetic},
	{Name: "volt", Symbol: "V", Category: CategoryElectromagnetic},
	{Name: "ampere", Symbol: "A", Category: CategoryElectromagnetic},

	// Light / sound
	{Name: "lux", Symbol: "lx", Category: CategoryLightSound},
	{Name: "decibel", Symbol: "dB", Category: CategoryLightSound},

	// Gas / concentration
	{Name: "ppm", Symbol: "ppm", Category: CategoryConcentration},
	{Name: "percent", Symbol: "%", Category: CategoryConcentration},
}

var (
	byName   = make(map[string]Unit, len(all))
	bySymbol = make(map[string]Unit, len(all))
)

func init() {
	for _, u := range all {
		byName[u.Name] = u
		bySymbol[u.Symbol] = u
	}
}

// Lookup resolves a friendly unit name such as "celsius".
func Lookup(name string) (Unit, error) {
	u, ok := byName[name]
	if !ok {
		return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
	}
	return u, nil
}

// BySymbol resolves a wire symbol such as "°C".
func BySymbol(symbol string) (Unit, error) {
	u, ok := bySymbol[symbol]
	if !ok {
		return Unit{}, fmt.Errorf("%w: symbol %q", ErrUnknownUnit, symbol)
	}
	return u, nil
}

// Resolve accepts either a friendly name or a symbol. Names win when a
// string is both (bar, psi, ppm).
func Resolve(nameOrSymbol string) (Unit, error) {
	if u, ok := byName[nameOrSymbol]; ok {
		return u, nil
	}
	if u, ok := bySymbol[nameOrSymbol]; ok {
		return u, nil
	}
	return Unit{}, fmt.Errorf("%w: %q", ErrUnknownUnit, nameOrSymbol)
}

// All returns the units in declaration order.
func All() []Unit {
	out := make([]Unit, len(all))
	copy(out, all)
	return out
}

func Names() []string {
	names := make([]string, 0, len(all))
	for _, u := range all {
		names = append(names, u.Name)
	}
	sort.Strings(names)
	return names
}
