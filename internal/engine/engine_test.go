package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sortdesk/mailtriage/internal/classifier"
	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/model"
	"github.com/sortdesk/mailtriage/internal/storage"
)

func newTestEngine(t *testing.T) (*TriageEngine, *mockMailbox, *storage.SQLiteLedger, *classifier.Store) {
	t.Helper()

	ledger, err := storage.NewSQLiteLedger(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ledger.Close() })
	require.NoError(t, ledger.Migrate(context.Background()))

	dir := t.TempDir()
	store := classifier.NewStore(
		filepath.Join(dir, "model.gob"),
		filepath.Join(dir, "vectorizer.gob"))

	mbox := newMockMailbox()
	eng := New(ledger, mbox, store, model.DefaultFolderMap())
	return eng, mbox, ledger, store
}

var testBase = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// inboxFixture loads three messages whose bodies rank HIGH, MEDIUM and LOW
// under the keyword fallback, so an untrained engine still triages them.
func inboxFixture(mbox *mockMailbox) {
	mbox.add(model.Message{
		ID:         "outage@example.com",
		Subject:    "Server down",
		Summary:    "Production is down, urgent action required.",
		Body:       "Production is down, urgent action required. Please respond asap.",
		ReceivedAt: testBase,
	})
	mbox.add(model.Message{
		ID:         "invoice@example.com",
		Subject:    "March billing",
		Summary:    "Please find the attached invoice for March.",
		Body:       "Please find the attached invoice for March.",
		ReceivedAt: testBase.Add(time.Hour),
	})
	mbox.add(model.Message{
		ID:         "newsletter@example.com",
		Subject:    "Weekly digest",
		Summary:    "Our newsletter has a special offer.",
		Body:       "Our newsletter has a special offer. Unsubscribe any time.",
		ReceivedAt: testBase.Add(2 * time.Hour),
	})
}

func TestProcessMovesAndRecords(t *testing.T) {
	eng, mbox, ledger, _ := newTestEngine(t)
	inboxFixture(mbox)
	ctx := context.Background()

	result, err := eng.Process(ctx, testBase)
	require.NoError(t, err)

	assert.Equal(t, model.MoveCounts{High: 1, Medium: 1, Low: 1}, result.MovedCounts)
	assert.Len(t, result.Items, 3)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.False(t, result.MLReady)

	// Items come back in receipt order.
	assert.Equal(t, "outage@example.com", result.Items[0].EmailID)
	assert.Equal(t, string(model.LabelHigh), result.Items[0].Priority)
	assert.Contains(t, result.Items[0].GmailLink, "rfc822msgid:outage@example.com")

	assert.Equal(t, "AI_HIGH_PRIORITY", mbox.folderOf("outage@example.com"))
	assert.Equal(t, "AI_MEDIUM_PRIORITY", mbox.folderOf("invoice@example.com"))
	assert.Equal(t, "AI_LOW_PRIORITY_RECOVERY", mbox.folderOf("newsletter@example.com"))

	// Moves happen in receipt order, one per message.
	assert.Equal(t, []string{
		"outage@example.com -> AI_HIGH_PRIORITY",
		"invoice@example.com -> AI_MEDIUM_PRIORITY",
		"newsletter@example.com -> AI_LOW_PRIORITY_RECOVERY",
	}, mbox.moveLog())

	record, err := ledger.GetOutcome(ctx, "newsletter@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.LabelLow, record.Label)
	assert.Equal(t, model.StatusMoved, record.Status)
}

func TestProcessIsIdempotent(t *testing.T) {
	eng, mbox, _, _ := newTestEngine(t)
	inboxFixture(mbox)
	ctx := context.Background()

	first, err := eng.Process(ctx, testBase)
	require.NoError(t, err)
	require.Equal(t, 3, first.MovedCounts.Total())

	// The messages left the inbox, but even if the search still saw them
	// the ledger would refuse to handle them twice: put one back.
	mbox.add(model.Message{
		ID:         "outage@example.com",
		Subject:    "Server down",
		Body:       "Production is down, urgent action required.",
		ReceivedAt: testBase,
	})

	second, err := eng.Process(ctx, testBase)
	require.NoError(t, err)
	assert.Equal(t, 0, second.MovedCounts.Total())
	assert.Empty(t, second.Items)
	assert.Equal(t, 1, second.Skipped)
}

func TestProcessSkipsVanishedMessage(t *testing.T) {
	eng, mbox, ledger, _ := newTestEngine(t)
	inboxFixture(mbox)
	mbox.fetchErr["invoice@example.com"] = fmt.Errorf("gone: %w", common.ErrNotFound)
	ctx := context.Background()

	result, err := eng.Process(ctx, testBase)
	require.NoError(t, err)

	assert.Equal(t, 2, result.MovedCounts.Total())
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	// A vanished message leaves no trace in the ledger.
	exists, err := ledger.HasOutcome(ctx, "invoice@example.com")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestProcessCountsMoveFailures(t *testing.T) {
	eng, mbox, ledger, _ := newTestEngine(t)
	inboxFixture(mbox)
	mbox.moveErr["outage@example.com"] = errors.New("connection reset")
	ctx := context.Background()

	result, err := eng.Process(ctx, testBase)
	require.NoError(t, err)

	assert.Equal(t, 2, result.MovedCounts.Total())
	assert.Equal(t, 1, result.Failed)

	// A failed move writes nothing, so the next run retries the message.
	exists, err := ledger.HasOutcome(ctx, "outage@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	mbox.moveErr = map[string]error{}
	retry, err := eng.Process(ctx, testBase)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.MovedCounts.High)
}

func TestProcessReportsProgress(t *testing.T) {
	eng, mbox, _, _ := newTestEngine(t)
	inboxFixture(mbox)

	var calls [][2]int
	eng.SetProgress(func(done, total int) {
		calls = append(calls, [2]int{done, total})
	})

	_, err := eng.Process(context.Background(), testBase)
	require.NoError(t, err)
	require.Len(t, calls, 3)
	assert.Equal(t, [2]int{1, 3}, calls[0])
	assert.Equal(t, [2]int{3, 3}, calls[2])
}

func TestRecoveryListsLowPriorityOnly(t *testing.T) {
	eng, mbox, _, _ := newTestEngine(t)
	inboxFixture(mbox)
	ctx := context.Background()

	_, err := eng.Process(ctx, testBase)
	require.NoError(t, err)

	recovery, err := eng.Recovery(ctx, testBase)
	require.NoError(t, err)
	require.Len(t, recovery.Items, 1)
	assert.Equal(t, "newsletter@example.com", recovery.Items[0].EmailID)
	assert.Contains(t, recovery.Items[0].GmailLink, "rfc822msgid:")
}

func TestPromoteLifecycle(t *testing.T) {
	eng, mbox, ledger, _ := newTestEngine(t)
	inboxFixture(mbox)
	ctx := context.Background()

	_, err := eng.Process(ctx, testBase)
	require.NoError(t, err)

	// LOW -> MEDIUM moves the message and rewrites the record.
	promoted, err := eng.Promote(ctx, "newsletter@example.com", model.LabelMedium)
	require.NoError(t, err)
	assert.Contains(t, promoted.Message, "MEDIUM")
	assert.Equal(t, "AI_MEDIUM_PRIORITY", mbox.folderOf("newsletter@example.com"))

	record, err := ledger.GetOutcome(ctx, "newsletter@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.LabelMedium, record.Label)
	assert.Equal(t, model.StatusPromoted, record.Status)

	// It no longer shows up in recovery.
	recovery, err := eng.Recovery(ctx, testBase)
	require.NoError(t, err)
	assert.Empty(t, recovery.Items)

	// Same target again is a no-op success.
	again, err := eng.Promote(ctx, "newsletter@example.com", model.LabelMedium)
	require.NoError(t, err)
	assert.Contains(t, again.Message, "already")

	// A different target re-moves it.
	_, err = eng.Promote(ctx, "newsletter@example.com", model.LabelHigh)
	require.NoError(t, err)
	assert.Equal(t, "AI_HIGH_PRIORITY", mbox.folderOf("newsletter@example.com"))
}

func TestPromoteRejectsInvalidTargets(t *testing.T) {
	eng, mbox, _, _ := newTestEngine(t)
	inboxFixture(mbox)
	ctx := context.Background()

	_, err := eng.Process(ctx, testBase)
	require.NoError(t, err)

	// Only HIGH and MEDIUM are valid targets.
	_, err = eng.Promote(ctx, "newsletter@example.com", model.LabelLow)
	require.Error(t, err)
	var userErr *common.UserError
	assert.True(t, errors.As(err, &userErr))

	// A message triaged HIGH cannot be promoted.
	_, err = eng.Promote(ctx, "outage@example.com", model.LabelMedium)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))

	// Neither can a message the engine never handled.
	_, err = eng.Promote(ctx, "unknown@example.com", model.LabelHigh)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrInvalidTransition))
}

func TestPromoteFailsWhenMessageVanished(t *testing.T) {
	eng, mbox, ledger, _ := newTestEngine(t)
	inboxFixture(mbox)
	ctx := context.Background()

	_, err := eng.Process(ctx, testBase)
	require.NoError(t, err)

	// The ledger still has the record, but the message is gone from the
	// mail store. The promotion fails and the record stays untouched.
	mbox.remove("newsletter@example.com")

	_, err = eng.Promote(ctx, "newsletter@example.com", model.LabelHigh)
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrNotFound))

	record, err := ledger.GetOutcome(ctx, "newsletter@example.com")
	require.NoError(t, err)
	assert.Equal(t, model.LabelLow, record.Label)
	assert.Equal(t, model.StatusMoved, record.Status)
}

func TestTrainCollectsSamples(t *testing.T) {
	eng, mbox, _, _ := newTestEngine(t)
	inboxFixture(mbox)
	ctx := context.Background()

	result, err := eng.Train(ctx, testBase, 2)
	require.NoError(t, err)
	require.Len(t, result.Samples, 2)
	assert.Equal(t, "outage@example.com", result.Samples[0].EmailID)
	assert.False(t, result.MLReady)

	// Sampling moves nothing.
	assert.Equal(t, "INBOX", mbox.folderOf("outage@example.com"))

	_, err = eng.Train(ctx, testBase, 0)
	require.Error(t, err)
	var userErr *common.UserError
	assert.True(t, errors.As(err, &userErr))
}

func TestTrainSkipsVanishedMessages(t *testing.T) {
	eng, mbox, _, _ := newTestEngine(t)
	inboxFixture(mbox)
	mbox.fetchErr["invoice@example.com"] = fmt.Errorf("gone: %w", common.ErrNotFound)

	result, err := eng.Train(context.Background(), testBase, 10)
	require.NoError(t, err)
	assert.Len(t, result.Samples, 2)
	assert.Equal(t, 1, result.Skipped)
}

func labelBatch() []LabelItem {
	return []LabelItem{
		{EmailID: "h1@example.com", Subject: "Server down", Summary: "production outage alert", Label: "HIGH"},
		{EmailID: "h2@example.com", Subject: "Outage", Summary: "production server outage", Label: "high"},
		{EmailID: "m1@example.com", Subject: "Invoice", Summary: "invoice payment due", Label: "MEDIUM"},
		{EmailID: "m2@example.com", Subject: "Billing", Summary: "invoice billing statement", Label: "MEDIUM"},
		{EmailID: "l1@example.com", Subject: "Digest", Summary: "newsletter promo digest", Label: "LOW"},
		{EmailID: "l2@example.com", Subject: "Sale", Summary: "newsletter promo sale", Label: "LOW"},
	}
}

func TestLabelAccumulatesUntilSufficient(t *testing.T) {
	eng, _, _, store := newTestEngine(t)
	ctx := context.Background()

	// Two labels are not enough to train.
	result, err := eng.Label(ctx, labelBatch()[:2])
	require.NoError(t, err)
	assert.Equal(t, 2, result.Stored)
	assert.False(t, result.Retrained)
	assert.False(t, result.MLReady)
	assert.False(t, store.Ready())

	// The rest of the batch crosses the threshold and trains the model.
	result, err = eng.Label(ctx, labelBatch()[2:])
	require.NoError(t, err)
	assert.Equal(t, 4, result.Stored)
	assert.True(t, result.Retrained)
	assert.True(t, result.MLReady)
	assert.True(t, store.Ready())
	assert.Equal(t, int64(1), store.Version())
}

func TestLabelSkipsInvalidItems(t *testing.T) {
	eng, _, ledger, _ := newTestEngine(t)
	ctx := context.Background()

	items := []LabelItem{
		{EmailID: "a@example.com", Label: "HIGH"},
		{EmailID: "", Label: "HIGH"},
		{EmailID: "b@example.com", Label: "WHENEVER"},
	}
	result, err := eng.Label(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Stored)

	stored, err := ledger.GetTrainingSamples(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "a@example.com", stored[0].MessageID)

	_, err = eng.Label(ctx, []LabelItem{{EmailID: "c@example.com", Label: "BOGUS"}})
	require.Error(t, err)
	var userErr *common.UserError
	assert.True(t, errors.As(err, &userErr))
}

func TestLabelRelabelDoesNotDoubleCount(t *testing.T) {
	eng, _, ledger, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Label(ctx, labelBatch()[:2])
	require.NoError(t, err)

	// Relabeling the same message replaces, not appends.
	relabel := labelBatch()[0]
	relabel.Label = "LOW"
	_, err = eng.Label(ctx, []LabelItem{relabel})
	require.NoError(t, err)

	stored, err := ledger.GetTrainingSamples(ctx)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
	for _, sample := range stored {
		if sample.MessageID == "h1@example.com" {
			assert.Equal(t, model.LabelLow, sample.Label)
		}
	}
}

func TestProcessUsesTrainedClassifier(t *testing.T) {
	eng, mbox, _, store := newTestEngine(t)
	ctx := context.Background()

	_, err := eng.Label(ctx, labelBatch())
	require.NoError(t, err)
	require.True(t, store.Ready())

	// No keyword hits anywhere; only the trained model can rank this.
	mbox.add(model.Message{
		ID:         "trained@example.com",
		Subject:    "Production server outage",
		Body:       "The production server is showing an outage alert.",
		ReceivedAt: testBase,
	})

	result, err := eng.Process(ctx, testBase)
	require.NoError(t, err)
	assert.True(t, result.MLReady)
	require.Len(t, result.Items, 1)
	assert.Equal(t, string(model.LabelHigh), result.Items[0].Priority)
}
