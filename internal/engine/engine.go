// Package engine implements the core triage engine that coordinates the
// mailbox session, the classifier and the outcome ledger.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/feature"
	"github.com/sortdesk/mailtriage/internal/mailbox"
	"github.com/sortdesk/mailtriage/internal/model"
	"github.com/sortdesk/mailtriage/internal/service"
)

// TriageEngine orchestrates triage: for each candidate message it extracts
// features, classifies, moves the message and records the outcome. The
// ledger, not the mail store, is the source of truth for what has already
// been handled, which is what makes Process resumable.
type TriageEngine struct {
	ledger     service.Ledger
	mailbox    service.Mailbox
	classifier Classifier
	folders    model.FolderMap
	inbox      string
	progress   func(done, total int)
}

// Config holds configuration options for the triage engine.
type Config struct {
	Inbox string
}

// New creates a triage engine with the given dependencies.
func New(ledger service.Ledger, mb service.Mailbox, cls Classifier, folders model.FolderMap) *TriageEngine {
	return NewWithConfig(ledger, mb, cls, folders, Config{Inbox: "INBOX"})
}

// NewWithConfig creates a triage engine with custom configuration.
func NewWithConfig(ledger service.Ledger, mb service.Mailbox, cls Classifier, folders model.FolderMap, config Config) *TriageEngine {
	inbox := config.Inbox
	if inbox == "" {
		inbox = "INBOX"
	}
	return &TriageEngine{
		ledger:     ledger,
		mailbox:    mb,
		classifier: cls,
		folders:    folders,
		inbox:      inbox,
	}
}

// SetProgress installs a callback invoked after each message of a batch run.
func (e *TriageEngine) SetProgress(fn func(done, total int)) {
	e.progress = fn
}

// Train samples up to limit messages received on or after since and returns
// them for human labeling. It performs no moves and writes nothing.
func (e *TriageEngine) Train(ctx context.Context, since time.Time, limit int) (*TrainResult, error) {
	if limit <= 0 {
		return nil, common.NewUserError("limit must be a positive integer", nil)
	}

	ids, err := e.mailbox.SearchSince(ctx, e.inbox, since)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}

	result := &TrainResult{
		Samples: []SampleItem{},
		MLReady: e.classifier.Ready(),
	}

	for _, id := range ids {
		if len(result.Samples) >= limit {
			break
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		msg, err := e.mailbox.Fetch(ctx, id)
		if err != nil {
			if errors.Is(err, common.ErrNotFound) {
				slog.Debug("Message vanished during sampling", "message_id", id)
			} else {
				slog.Warn("Failed to fetch message for sampling", "message_id", id, "error", err)
			}
			result.Skipped++
			continue
		}

		result.Samples = append(result.Samples, SampleItem{
			EmailID: msg.ID,
			Subject: msg.Subject,
			Summary: msg.Summary,
		})
	}

	result.Message = fmt.Sprintf("Collected %d samples for labeling", len(result.Samples))
	return result, nil
}

// Label stores human labels and retrains the classifier as soon as the
// accumulated samples are sufficient (at least the classifier's minimum,
// spanning more than one label). Until then labels accumulate and the old
// classifier keeps serving; duplicate message ids replace earlier labels.
func (e *TriageEngine) Label(ctx context.Context, items []LabelItem) (*LabelResult, error) {
	samples := make([]model.TrainingSample, 0, len(items))
	now := time.Now()
	for _, item := range items {
		label, err := model.ParseLabel(item.Label)
		if err != nil || item.EmailID == "" {
			continue
		}
		samples = append(samples, model.TrainingSample{
			MessageID: item.EmailID,
			Subject:   item.Subject,
			Summary:   item.Summary,
			Label:     label,
			LabeledAt: now,
		})
	}

	if len(samples) == 0 {
		return nil, common.NewUserError("no valid labels provided", nil)
	}

	if err := e.ledger.SaveTrainingSamples(ctx, samples); err != nil {
		return nil, fmt.Errorf("failed to store training samples: %w", err)
	}

	all, err := e.ledger.GetTrainingSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load training samples: %w", err)
	}

	result := &LabelResult{Stored: len(samples)}

	unit, err := e.classifier.Retrain(ctx, all)
	switch {
	case errors.Is(err, common.ErrInsufficientData):
		// Not enough signal yet; the previously active classifier, if any,
		// keeps serving.
		result.Message = fmt.Sprintf("Stored %d labels; %v", len(samples), err)
	case err != nil:
		return nil, fmt.Errorf("retraining failed: %w", err)
	default:
		if err := e.classifier.Activate(unit); err != nil {
			return nil, err
		}
		result.Retrained = true
		result.Message = fmt.Sprintf("Model trained on %d samples", len(all))
		slog.Info("Classifier retrained",
			"samples", len(all),
			"version", unit.Version)
	}

	result.MLReady = e.classifier.Ready()
	return result, nil
}

// Process drives every message received on or after since through
// classify-move-record. Messages already in the ledger are skipped, so a
// repeat run with no new mail moves nothing. Per-message failures never abort
// the batch; a success that could not be recorded is surfaced in the returned
// error because a mismatch between mailbox and ledger is the one state the
// engine refuses to hide.
func (e *TriageEngine) Process(ctx context.Context, since time.Time) (*ProcessResult, error) {
	runID := uuid.NewString()
	slog.Info("Starting triage run", "run_id", runID, "since", since.Format("2006-01-02"))

	ids, err := e.mailbox.SearchSince(ctx, e.inbox, since)
	if err != nil {
		return nil, fmt.Errorf("failed to search mailbox: %w", err)
	}

	result := &ProcessResult{
		Items:   []ProcessItem{},
		MLReady: e.classifier.Ready(),
	}
	var ledgerErrs []error

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if e.progress != nil {
			e.progress(i+1, len(ids))
		}

		handled, err := e.ledger.HasOutcome(ctx, id)
		if err != nil {
			return result, fmt.Errorf("failed to consult ledger for %s: %w", id, err)
		}
		if handled {
			result.Skipped++
			continue
		}

		item, err := e.processOne(ctx, id)
		switch {
		case errors.Is(err, common.ErrNotFound):
			// Vanished mid-pipeline: treated as never having existed.
			slog.Info("Message vanished, skipping", "run_id", runID, "message_id", id)
			result.Skipped++
		case errors.Is(err, common.ErrClassifierMismatch):
			slog.Error("Classifier mismatch, message left unprocessed",
				"run_id", runID, "message_id", id, "error", err)
			result.Failed++
		case errors.Is(err, errLedgerWrite):
			slog.Error("Moved message could not be recorded",
				"run_id", runID, "message_id", id, "error", err)
			result.Failed++
			ledgerErrs = append(ledgerErrs, err)
		case err != nil:
			slog.Warn("Failed to process message",
				"run_id", runID, "message_id", id, "error", err)
			result.Failed++
		default:
			result.MovedCounts.Add(model.Label(item.Priority))
			result.Items = append(result.Items, *item)
		}
	}

	slog.Info("Triage run complete",
		"run_id", runID,
		"moved", result.MovedCounts.Total(),
		"skipped", result.Skipped,
		"failed", result.Failed)

	return result, errors.Join(ledgerErrs...)
}

// errLedgerWrite marks the forbidden state: the mailbox move succeeded but
// the ledger write did not.
var errLedgerWrite = errors.New("ledger write failed after move")

func (e *TriageEngine) processOne(ctx context.Context, id string) (*ProcessItem, error) {
	msg, err := e.mailbox.Fetch(ctx, id)
	if err != nil {
		return nil, err
	}

	label, err := e.classifier.Predict(feature.Text(msg))
	if err != nil {
		return nil, err
	}

	folder := e.folders.FolderFor(label)
	if err := e.mailbox.Move(ctx, msg.ID, folder); err != nil {
		return nil, err
	}

	record := &model.OutcomeRecord{
		MessageID: msg.ID,
		Subject:   msg.Subject,
		Summary:   msg.Summary,
		Label:     label,
		Folder:    folder,
		GmailLink: mailbox.GmailLink(msg.ID),
		Status:    model.StatusMoved,
		MovedAt:   time.Now(),
	}
	if err := e.ledger.SaveOutcome(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errLedgerWrite, msg.ID, err)
	}

	return &ProcessItem{
		EmailID:   msg.ID,
		Subject:   msg.Subject,
		Summary:   msg.Summary,
		Priority:  string(label),
		GmailLink: record.GmailLink,
	}, nil
}

// Recovery returns every message recorded as low priority on or after since.
// Read-only: it consults the ledger, never the mail store.
func (e *TriageEngine) Recovery(ctx context.Context, since time.Time) (*RecoveryResult, error) {
	records, err := e.ledger.GetOutcomesByLabel(ctx, model.LabelLow, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query recovery records: %w", err)
	}

	result := &RecoveryResult{Items: []RecoveryItem{}}
	for _, record := range records {
		result.Items = append(result.Items, RecoveryItem{
			EmailID:   record.MessageID,
			Subject:   record.Subject,
			Summary:   record.Summary,
			GmailLink: record.GmailLink,
		})
	}

	return result, nil
}

// Promote moves a low-priority message to the HIGH or MEDIUM folder and
// updates its ledger record in the same logical step. Re-promoting to the
// same label is a no-op success; re-promoting to a different label performs
// the move again and updates the record.
func (e *TriageEngine) Promote(ctx context.Context, messageID string, newLabel model.Label) (*PromoteResult, error) {
	if newLabel != model.LabelHigh && newLabel != model.LabelMedium {
		return nil, common.NewUserError(
			fmt.Sprintf("new priority must be HIGH or MEDIUM, got %q", newLabel), nil)
	}
	if messageID == "" {
		return nil, common.NewUserError("email_id is required", nil)
	}

	record, err := e.ledger.GetOutcome(ctx, messageID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, fmt.Errorf("%w: message %s has no triage record", common.ErrInvalidTransition, messageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load outcome for %s: %w", messageID, err)
	}

	promotable := record.Label == model.LabelLow || record.Status == model.StatusPromoted
	if !promotable {
		return nil, fmt.Errorf("%w: message %s is %s, only LOW messages can be promoted",
			common.ErrInvalidTransition, messageID, record.Label)
	}

	if record.Status == model.StatusPromoted && record.Label == newLabel {
		return &PromoteResult{
			Message: fmt.Sprintf("Email already promoted to %s", newLabel),
		}, nil
	}

	folder := e.folders.FolderFor(newLabel)
	if err := e.mailbox.Move(ctx, messageID, folder); err != nil {
		return nil, fmt.Errorf("failed to move %s to %s: %w", messageID, folder, err)
	}

	record.Label = newLabel
	record.Folder = folder
	record.Status = model.StatusPromoted
	record.MovedAt = time.Now()
	if err := e.ledger.SaveOutcome(ctx, record); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", errLedgerWrite, messageID, err)
	}

	slog.Info("Promoted message", "message_id", messageID, "new_priority", newLabel)
	return &PromoteResult{
		Message: fmt.Sprintf("Email promoted to %s", newLabel),
	}, nil
}
