package models

import "time"

// Live feed event types.
const (
	EventGrievanceCreated       = "grievance.created"
	EventGrievanceStatusChanged = "grievance.status_changed"
)

// FeedEvent is pushed to connected admin dashboards.
type FeedEvent struct {
	Type        string    `json:"type"`
	GrievanceID string    `json:"grievance_id"`
	Department  string    `json:"department"`
	Priority    string    `json:"priority,omitempty"`
	OldStatus   string    `json:"old_status,omitempty"`
	NewStatus   string    `json:"new_status,omitempty"`
	At          time.Time `json:"at"`
}
