// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/sortdesk/mailtriage/internal/model"
)

// RetryOptions configures retry behavior for fallible operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Ledger defines the contract for the outcome ledger: the source of truth for
// which messages have already been handled and where they ended up.
type Ledger interface {
	// Outcome operations
	SaveOutcome(ctx context.Context, record *model.OutcomeRecord) error
	GetOutcome(ctx context.Context, messageID string) (*model.OutcomeRecord, error)
	HasOutcome(ctx context.Context, messageID string) (bool, error)
	GetOutcomesByLabel(ctx context.Context, label model.Label, since time.Time) ([]model.OutcomeRecord, error)

	// Training sample operations
	SaveTrainingSamples(ctx context.Context, samples []model.TrainingSample) error
	GetTrainingSamples(ctx context.Context) ([]model.TrainingSample, error)

	// Database management
	Migrate(ctx context.Context) error
	Close() error
}

// Mailbox defines the contract for a stateful mail store session. All
// operations on one session are serialized by the implementation; message ids
// are RFC 822 Message-IDs, stable across folder moves.
type Mailbox interface {
	// SearchSince returns ids of messages in folder received on or after
	// since, ordered by receipt time ascending.
	SearchSince(ctx context.Context, folder string, since time.Time) ([]string, error)
	// Fetch returns a snapshot of the message, searching across known
	// folders. Returns common.ErrNotFound if the message no longer exists.
	Fetch(ctx context.Context, messageID string) (*model.Message, error)
	// Move relocates the message to folder. Moving a message already in
	// folder is a no-op success; a vanished message is common.ErrNotFound.
	Move(ctx context.Context, messageID, folder string) error
	// EnsureFolder creates the folder if absent. Safe to call repeatedly and
	// tolerant of concurrent creation by another session.
	EnsureFolder(ctx context.Context, name string) error
	Close() error
}
