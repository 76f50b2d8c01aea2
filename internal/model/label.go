// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
)

// Label is the triage priority assigned to a message.
type Label string

// Priority labels.
const (
	LabelHigh   Label = "HIGH"
	LabelMedium Label = "MEDIUM"
	LabelLow    Label = "LOW"
)

// Labels lists all valid priority labels.
func Labels() []Label {
	return []Label{LabelHigh, LabelMedium, LabelLow}
}

// ParseLabel converts a string into a Label, accepting any case.
func ParseLabel(s string) (Label, error) {
	l := Label(strings.ToUpper(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("invalid label %q", s)
	}
	return l, nil
}

// IsValid reports whether the label is one of HIGH, MEDIUM or LOW.
func (l Label) IsValid() bool {
	switch l {
	case LabelHigh, LabelMedium, LabelLow:
		return true
	}
	return false
}
