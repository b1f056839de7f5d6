package aggregator

// HourlySummary rolls up the submissions finished within one UTC hour.
type HourlySummary struct {
	HourStart         int64 `json:"hour_start" yaml:"hour_start"`
	BatchesDelivered  int   `json:"batches_delivered" yaml:"batches_delivered"`
	BatchesDropped    int   `json:"batches_dropped" yaml:"batches_dropped"`
	ReadingsDelivered int   `json:"readings_delivered" yaml:"readings_delivered"`
	ReadingsDropped   int   `json:"readings_dropped" yaml:"readings_dropped"`
	Attempts          int   `json:"attempts" yaml:"attempts"`
}

// DeliveryRate is the share of batches delivered, 0 when there were none.
func (s HourlySummary) DeliveryRate() float64 {
	total := s.BatchesDelivered + s.BatchesDropped
	if total == 0 {
		return 0
	}
	return float64(s.BatchesDelivered) / float64(total)
}
