package model

import "time"

// TrainingSample is a human-labeled message used to retrain the classifier.
// Samples are keyed by MessageID; submitting the same message again replaces
// the earlier label instead of double-counting it.
type TrainingSample struct {
	LabeledAt time.Time
	MessageID string
	Subject   string
	Summary   string
	Label     Label
}

// Text returns the text the classifier trains on.
func (s TrainingSample) Text() string {
	if s.Subject == "" {
		return s.Summary
	}
	if s.Summary == "" {
		return s.Subject
	}
	return s.Subject + " " + s.Summary
}
