package models

// User represents a Jellyfin user. Name is assumed unique within a run
// and is used as the aggregation key.
type User struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}
