package types

// SensorInput is the body for registering or updating a sensor.
// Nil fields are left out so updates only touch what was given.
type SensorInput struct {
	Type        *string  `json:"type,omitempty"`
	Latitude    *float64 `json:"latitude,omitempty"`
	Longitude   *float64 `json:"longitude,omitempty"`
	Description *string  `json:"description,omitempty"`
	IsActive    *bool    `json:"is_active,omitempty"`
}

type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type Registration struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResult struct {
	Status     string `json:"status"`
	TokenSaved bool   `json:"token_saved"`
}
