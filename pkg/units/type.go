package units

type Category string

const (
	CategoryLength          Category = "length"
	CategoryTemperature     Category = "temperature"
	CategoryPressure        Category = "pressure"
	CategoryMotion          Category = "motion"
	CategoryElectromagnetic Category = "electromagnetic"
	CategoryLightSound      Category = "light_sound"
	CategoryConcentration   Category = "concentration"
)

// Unit maps the friendly name used on the command line to the symbol sent
// to the API.
type Unit struct {
	Name     string
	Symbol   string
	Category Category
}

func (u Unit) String() string {
	return u.Name
}
