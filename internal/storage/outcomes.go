package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/model"
)

// SaveOutcome writes the record for a message, replacing any earlier record
// for the same message id. The primary key on message_id is what enforces the
// at-most-one-live-record invariant.
func (s *SQLiteLedger) SaveOutcome(ctx context.Context, record *model.OutcomeRecord) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateOutcome(record); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outcomes (message_id, subject, summary, label, folder, gmail_link, status, moved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			label = excluded.label,
			folder = excluded.folder,
			status = excluded.status,
			moved_at = excluded.moved_at`,
		record.MessageID, record.Subject, record.Summary, string(record.Label),
		record.Folder, record.GmailLink, string(record.Status), record.MovedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save outcome for %s: %w", record.MessageID, err)
	}

	return nil
}

// GetOutcome returns the record for a message id, or common.ErrNotFound.
func (s *SQLiteLedger) GetOutcome(ctx context.Context, messageID string) (*model.OutcomeRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(messageID, "messageID"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT message_id, subject, summary, label, folder, gmail_link, status, moved_at
		FROM outcomes WHERE message_id = ?`, messageID)

	record, err := scanOutcome(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("outcome for %s: %w", messageID, common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get outcome for %s: %w", messageID, err)
	}

	return record, nil
}

// HasOutcome reports whether a record exists for the message id.
func (s *SQLiteLedger) HasOutcome(ctx context.Context, messageID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateString(messageID, "messageID"); err != nil {
		return false, err
	}

	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM outcomes WHERE message_id = ?`, messageID).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check outcome for %s: %w", messageID, err)
	}

	return count > 0, nil
}

// GetOutcomesByLabel returns records with the given label moved on or after
// since, ordered by moved_at ascending. Timestamps are stored and compared in
// UTC; the driver encodes them as strings, so a mixed-offset comparison would
// be lexicographic rather than chronological.
func (s *SQLiteLedger) GetOutcomesByLabel(ctx context.Context, label model.Label, since time.Time) ([]model.OutcomeRecord, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if !label.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidLabel, label)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, subject, summary, label, folder, gmail_link, status, moved_at
		FROM outcomes
		WHERE label = ? AND moved_at >= ?
		ORDER BY moved_at ASC`, string(label), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes by label: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []model.OutcomeRecord
	for rows.Next() {
		record, err := scanOutcome(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		records = append(records, *record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outcomes: %w", err)
	}

	return records, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOutcome(row rowScanner) (*model.OutcomeRecord, error) {
	var record model.OutcomeRecord
	var label, status string

	err := row.Scan(&record.MessageID, &record.Subject, &record.Summary,
		&label, &record.Folder, &record.GmailLink, &status, &record.MovedAt)
	if err != nil {
		return nil, err
	}

	record.Label = model.Label(label)
	record.Status = model.OutcomeStatus(status)
	return &record, nil
}
