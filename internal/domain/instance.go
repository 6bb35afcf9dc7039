package domain

import "time"

// Instance is the singleton record identifying this client installation.
// Its ID is sent with every API request so the server can attribute and
// dedupe operations per device.
type Instance struct {
	CreatedAt time.Time `json:"createdAt"`
	ID        string    `json:"id"`
}
