package monitor

import "time"

// Status is the last probe result of every dependency.
type Status struct {
	Store      bool      `json:"store"`
	Redis      bool      `json:"redis"`
	Buffer     bool      `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

// Healthy reports whether requests can be served; the buffer only degrades replay.
func (s Status) Healthy() bool {
	return s.Store && s.Redis
}
