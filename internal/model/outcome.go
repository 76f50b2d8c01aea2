package model

import "time"

// OutcomeStatus indicates how a message reached its current folder.
type OutcomeStatus string

// Outcome status constants.
const (
	// StatusMoved means Process classified the message and moved it.
	StatusMoved OutcomeStatus = "MOVED"
	// StatusPromoted means a human promoted the message out of the
	// low-priority folder.
	StatusPromoted OutcomeStatus = "PROMOTED"
)

// OutcomeRecord is the per-message entry in the outcome ledger. MessageID is
// the natural key: a message has at most one live record, and promotions
// update it in place rather than adding a second one.
type OutcomeRecord struct {
	MovedAt   time.Time
	MessageID string
	Subject   string
	Summary   string
	GmailLink string
	Label     Label
	Folder    string
	Status    OutcomeStatus
}

// MoveCounts aggregates how many messages Process moved per label.
type MoveCounts struct {
	High   int `json:"HIGH"`
	Medium int `json:"MEDIUM"`
	Low    int `json:"LOW"`
}

// Add increments the counter for the given label.
func (c *MoveCounts) Add(l Label) {
	switch l {
	case LabelHigh:
		c.High++
	case LabelMedium:
		c.Medium++
	case LabelLow:
		c.Low++
	}
}

// Total returns the sum of all counters.
func (c MoveCounts) Total() int {
	return c.High + c.Medium + c.Low
}
