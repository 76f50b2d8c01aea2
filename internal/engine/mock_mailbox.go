package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/model"
)

// mockMailbox is an in-memory service.Mailbox for testing: messages keyed by
// id, each carrying its current folder, with a recorded move history.
type mockMailbox struct {
	mu       sync.Mutex
	messages map[string]*model.Message
	moves    []string // "id -> folder" in call order
	folders  map[string]bool

	fetchErr map[string]error // per-id injected Fetch failures
	moveErr  map[string]error // per-id injected Move failures
}

func newMockMailbox() *mockMailbox {
	return &mockMailbox{
		messages: make(map[string]*model.Message),
		folders:  map[string]bool{"INBOX": true},
		fetchErr: make(map[string]error),
		moveErr:  make(map[string]error),
	}
}

func (m *mockMailbox) add(msg model.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg.Folder == "" {
		msg.Folder = "INBOX"
	}
	m.messages[msg.ID] = &msg
}

func (m *mockMailbox) remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.messages, id)
}

func (m *mockMailbox) moveLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.moves...)
}

func (m *mockMailbox) folderOf(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.messages[id]; ok {
		return msg.Folder
	}
	return ""
}

func (m *mockMailbox) SearchSince(_ context.Context, folder string, since time.Time) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var found []*model.Message
	for _, msg := range m.messages {
		if msg.Folder == folder && !msg.ReceivedAt.Before(since) {
			found = append(found, msg)
		}
	}
	sort.Slice(found, func(i, j int) bool {
		return found[i].ReceivedAt.Before(found[j].ReceivedAt)
	})

	ids := make([]string, len(found))
	for i, msg := range found {
		ids[i] = msg.ID
	}
	return ids, nil
}

func (m *mockMailbox) Fetch(_ context.Context, messageID string) (*model.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fetchErr[messageID]; err != nil {
		return nil, err
	}
	msg, ok := m.messages[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, common.ErrNotFound)
	}
	snapshot := *msg
	return &snapshot, nil
}

func (m *mockMailbox) Move(_ context.Context, messageID, folder string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.moveErr[messageID]; err != nil {
		return err
	}
	msg, ok := m.messages[messageID]
	if !ok {
		return fmt.Errorf("message %s: %w", messageID, common.ErrNotFound)
	}
	if msg.Folder == folder {
		return nil
	}
	msg.Folder = folder
	m.moves = append(m.moves, messageID+" -> "+folder)
	return nil
}

func (m *mockMailbox) EnsureFolder(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.folders[name] = true
	return nil
}

func (m *mockMailbox) Close() error { return nil }
