package types

// Reading is a single sensor observation as sent to the API.
type Reading struct {
	Unit  string  `json:"unit"`
	Value float64 `json:"value"`
}

// ReadingBatch is the body of POST /sensors/{id}/data.
type ReadingBatch struct {
	Readings []Reading `json:"readings"`
}
