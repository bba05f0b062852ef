package models

import "time"

// Render is one published card in the render ledger.
type Render struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Template   string    `json:"template"`
	ObjectKey  string    `json:"object_key"`
	URL        string    `json:"url"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	Bytes      int64     `json:"bytes"`
	DurationMS int64     `json:"duration_ms"`
	RequestID  string    `json:"request_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
