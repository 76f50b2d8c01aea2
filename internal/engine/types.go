package engine

import "github.com/sortdesk/mailtriage/internal/model"

// SampleItem is one message offered to the human for labeling.
type SampleItem struct {
	EmailID string `json:"email_id"`
	Subject string `json:"subject"`
	Summary string `json:"summary"`
}

// TrainResult is the outcome of a sampling run.
type TrainResult struct {
	Message string       `json:"message"`
	Samples []SampleItem `json:"samples"`
	Skipped int          `json:"skipped"`
	MLReady bool         `json:"ml_ready"`
}

// LabelItem is one human-labeled message.
type LabelItem struct {
	EmailID string `json:"email_id"`
	Subject string `json:"subject"`
	Summary string `json:"summary"`
	Label   string `json:"label"`
}

// LabelResult reports what happened to a batch of labels.
type LabelResult struct {
	Message   string `json:"message"`
	Stored    int    `json:"stored"`
	MLReady   bool   `json:"ml_ready"`
	Retrained bool   `json:"retrained"`
}

// ProcessItem is one message triaged by a Process run.
type ProcessItem struct {
	EmailID   string `json:"email_id"`
	Subject   string `json:"subject"`
	Summary   string `json:"summary"`
	Priority  string `json:"priority"`
	GmailLink string `json:"gmail_link"`
}

// ProcessResult aggregates a Process run. Skipped counts messages already in
// the ledger or vanished mid-run; Failed counts messages left unprocessed by
// an error.
type ProcessResult struct {
	MovedCounts model.MoveCounts `json:"moved_counts"`
	Items       []ProcessItem    `json:"items"`
	Skipped     int              `json:"skipped"`
	Failed      int              `json:"failed"`
	MLReady     bool             `json:"ml_ready"`
}

// RecoveryItem is one low-priority message offered for human review.
type RecoveryItem struct {
	EmailID   string `json:"email_id"`
	Subject   string `json:"subject"`
	Summary   string `json:"summary"`
	GmailLink string `json:"gmail_link"`
}

// RecoveryResult lists messages currently recorded as low priority.
type RecoveryResult struct {
	Items []RecoveryItem `json:"items"`
}

// PromoteResult confirms a promotion.
type PromoteResult struct {
	Message string `json:"message"`
}
