package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sortdesk/mailtriage/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrInvalidLabel  = errors.New("invalid priority label")
	ErrInvalidRecord = errors.New("invalid outcome record")
)

func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

func validateOutcome(record *model.OutcomeRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record", ErrNilParameter)
	}
	if record.MessageID == "" {
		return fmt.Errorf("%w: missing message id", ErrInvalidRecord)
	}
	if !record.Label.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidLabel, record.Label)
	}
	if record.Folder == "" {
		return fmt.Errorf("%w: missing folder", ErrInvalidRecord)
	}
	return nil
}
