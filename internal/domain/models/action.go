package models

import "time"

// Action is the mutation a scan resolves to.
type Action string

const (
	ActionLoan   Action = "loan"
	ActionReturn Action = "return"
)

// Notice is broadcast to sibling displays after every completed loan or
// return attempt so they can refresh their aggregates independently.
type Notice struct {
	Type     Action    `json:"type"`
	Success  bool      `json:"success"`
	ItemCode string    `json:"itemCode,omitempty"`
	At       time.Time `json:"at"`
}
