package storage

import (
	"context"
	"fmt"

	"github.com/sortdesk/mailtriage/internal/model"
)

// SaveTrainingSamples stores human-labeled samples, one transaction for the
// whole batch. Re-submitting a message id replaces its earlier label, so
// overlapping Label calls never double-count a message.
func (s *SQLiteLedger) SaveTrainingSamples(ctx context.Context, samples []model.TrainingSample) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	for _, sample := range samples {
		if sample.MessageID == "" {
			return fmt.Errorf("%w: training sample missing message id", ErrInvalidRecord)
		}
		if !sample.Label.IsValid() {
			return fmt.Errorf("%w: %q", ErrInvalidLabel, sample.Label)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO training_samples (message_id, subject, summary, label, labeled_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(message_id) DO UPDATE SET
			subject = excluded.subject,
			summary = excluded.summary,
			label = excluded.label,
			labeled_at = excluded.labeled_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, sample := range samples {
		if _, err := stmt.ExecContext(ctx, sample.MessageID, sample.Subject,
			sample.Summary, string(sample.Label), sample.LabeledAt); err != nil {
			return fmt.Errorf("failed to save sample %s: %w", sample.MessageID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit samples: %w", err)
	}

	return nil
}

// GetTrainingSamples returns all stored samples ordered by message id, so a
// retrain over the same sample set always sees them in the same order.
func (s *SQLiteLedger) GetTrainingSamples(ctx context.Context) ([]model.TrainingSample, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT message_id, subject, summary, label, labeled_at
		FROM training_samples
		ORDER BY message_id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query training samples: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var samples []model.TrainingSample
	for rows.Next() {
		var sample model.TrainingSample
		var label string
		if err := rows.Scan(&sample.MessageID, &sample.Subject, &sample.Summary,
			&label, &sample.LabeledAt); err != nil {
			return nil, fmt.Errorf("failed to scan training sample: %w", err)
		}
		sample.Label = model.Label(label)
		samples = append(samples, sample)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate training samples: %w", err)
	}

	return samples, nil
}
