package historydb

type SubmissionStatus string

const (
	StatusDelivered SubmissionStatus = "delivered"
	StatusDropped   SubmissionStatus = "dropped"
)

type Submission struct {
	ID           int64            `db:"id" json:"id" yaml:"id"`
	Timestamp    int64            `db:"timestamp" json:"timestamp" yaml:"timestamp"`
	SensorID     int              `db:"sensor_id" json:"sensor_id" yaml:"sensor_id"`
	ReadingCount int              `db:"reading_count" json:"reading_count" yaml:"reading_count"`
	Attempts     int              `db:"attempts" json:"attempts" yaml:"attempts"`
	Status       SubmissionStatus `db:"status" json:"status" yaml:"status"`
	Reason       string           `db:"reason" json:"reason,omitempty" yaml:"reason,omitempty"`
}
