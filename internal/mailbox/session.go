// Package mailbox manages a stateful IMAP session against the remote mail
// store. IMAP connections are not safe for concurrent commands, so every
// operation serializes on the session lock; transient protocol failures
// reconnect and retry with bounded backoff.
package mailbox

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/sortdesk/mailtriage/internal/common"
	"github.com/sortdesk/mailtriage/internal/model"
	"github.com/sortdesk/mailtriage/internal/service"
)

// Options configures the IMAP session. Timeout bounds every network
// operation, connect included; it defaults to 30 seconds.
type Options struct {
	Host               string
	Port               int
	Username           string
	Password           string
	Inbox              string
	Timeout            time.Duration
	UseTLS             bool
	InsecureSkipVerify bool
}

// Session is a single serialized IMAP session. It implements service.Mailbox.
type Session struct {
	opts     Options
	folders  model.FolderMap
	retry    service.RetryOptions
	mu       sync.Mutex
	client   *imapclient.Client
	selected string
}

// NewSession creates a session; no connection is made until the first
// operation needs one.
func NewSession(opts Options, folders model.FolderMap) *Session {
	if opts.Inbox == "" {
		opts.Inbox = "INBOX"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Session{
		opts:    opts,
		folders: folders,
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2.0,
		},
	}
}

// Close logs out and drops the connection.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client == nil {
		return nil
	}
	client := s.client
	s.client = nil
	s.selected = ""

	if err := client.Logout().Wait(); err != nil {
		_ = client.Close()
		return fmt.Errorf("imap logout failed: %w", err)
	}
	return client.Close()
}

// SearchSince returns message ids in folder received on or after since,
// ordered by receipt time ascending. Messages without a Message-ID header
// are skipped; they cannot be tracked across folder moves.
func (s *Session) SearchSince(ctx context.Context, folder string, since time.Time) ([]string, error) {
	var ids []string

	err := s.withSession(ctx, func(client *imapclient.Client) error {
		if err := s.selectFolder(client, folder); err != nil {
			return err
		}

		data, err := client.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
		if err != nil {
			return fmt.Errorf("search since %s: %w", since.Format("02-Jan-2006"), err)
		}

		uids := data.AllUIDs()
		if len(uids) == 0 {
			ids = nil
			return nil
		}

		fetchCmd := client.Fetch(imap.UIDSetNum(uids...), &imap.FetchOptions{
			Envelope: true,
			UID:      true,
		})
		defer fetchCmd.Close()

		type received struct {
			at time.Time
			id string
		}
		var found []received

		for {
			msg := fetchCmd.Next()
			if msg == nil {
				break
			}
			buf, err := msg.Collect()
			if err != nil {
				continue
			}
			if buf.Envelope == nil || buf.Envelope.MessageID == "" {
				continue
			}
			found = append(found, received{
				id: canonicalID(buf.Envelope.MessageID),
				at: buf.Envelope.Date,
			})
		}

		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("fetch envelopes: %w", err)
		}

		sort.SliceStable(found, func(i, j int) bool { return found[i].at.Before(found[j].at) })
		ids = make([]string, len(found))
		for i, f := range found {
			ids[i] = f.id
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// Fetch returns a snapshot of the message, searching the inbox and all
// priority folders. The message may not be where it was last seen.
func (s *Session) Fetch(ctx context.Context, messageID string) (*model.Message, error) {
	var snapshot *model.Message

	err := s.withSession(ctx, func(client *imapclient.Client) error {
		folder, uid, err := s.locate(client, messageID)
		if err != nil {
			return err
		}

		bodySection := &imap.FetchItemBodySection{Peek: true}
		fetchCmd := client.Fetch(imap.UIDSetNum(uid), &imap.FetchOptions{
			Envelope:    true,
			UID:         true,
			BodySection: []*imap.FetchItemBodySection{bodySection},
		})
		defer fetchCmd.Close()

		msg := fetchCmd.Next()
		if msg == nil {
			return fmt.Errorf("message %s: %w", messageID, common.ErrNotFound)
		}
		buf, err := msg.Collect()
		if err != nil {
			return fmt.Errorf("collect message %s: %w", messageID, err)
		}
		if err := fetchCmd.Close(); err != nil {
			return fmt.Errorf("fetch message %s: %w", messageID, err)
		}

		snapshot = buildMessage(buf, bodySection, folder)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return snapshot, nil
}

// Move relocates the message to folder. A message already in folder is a
// success; a vanished message is common.ErrNotFound.
func (s *Session) Move(ctx context.Context, messageID, folder string) error {
	return s.withSession(ctx, func(client *imapclient.Client) error {
		current, uid, err := s.locate(client, messageID)
		if err != nil {
			return err
		}
		if current == folder {
			slog.Debug("Message already in destination folder",
				"message_id", messageID, "folder", folder)
			return nil
		}

		if err := s.selectFolder(client, current); err != nil {
			return err
		}
		if _, err := client.Move(imap.UIDSetNum(uid), folder).Wait(); err != nil {
			return fmt.Errorf("move %s to %s: %w", messageID, folder, err)
		}
		return nil
	})
}

// EnsureFolder creates the folder if it does not exist. A folder created
// concurrently by another session is not an error.
func (s *Session) EnsureFolder(ctx context.Context, name string) error {
	return s.withSession(ctx, func(client *imapclient.Client) error {
		return ensureFolder(client, name)
	})
}

func ensureFolder(client *imapclient.Client, name string) error {
	if err := client.Create(name, nil).Wait(); err != nil {
		var respErr *imap.Error
		if errors.As(err, &respErr) && respErr.Code == imap.ResponseCodeAlreadyExists {
			return nil
		}
		return fmt.Errorf("ensure folder %s: %w", name, err)
	}
	slog.Info("Created mailbox folder", "folder", name)
	return nil
}

// withSession runs op while holding the session lock, reconnecting and
// retrying on transient protocol failures. Every attempt, connect included,
// runs under the session timeout so one unresponsive server cannot stall a
// batch; an expired attempt drops the connection and retries. Permanent
// errors such as a vanished message are returned immediately.
func (s *Session) withSession(ctx context.Context, op func(*imapclient.Client) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return common.WithRetry(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()

		if err := s.ensureConnectedLocked(attemptCtx); err != nil {
			if ctx.Err() != nil {
				return &common.RetryableError{Err: err, Retryable: false}
			}
			return err
		}

		// Expiry closes the connection, which unblocks any pending command
		// instead of hanging on an unreachable server. The client is captured
		// here; the callback must not read s.client, which a concurrent reset
		// may clear.
		client := s.client
		stop := context.AfterFunc(attemptCtx, func() { _ = client.Close() })
		err := op(client)
		stop()

		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			s.resetLocked()
			return &common.RetryableError{Err: err, Retryable: false}
		}
		if attemptCtx.Err() != nil {
			s.resetLocked()
			return fmt.Errorf("%w: no reply within %s: %v",
				common.ErrMailboxUnavailable, s.opts.Timeout, err)
		}
		if isTransient(err) {
			s.resetLocked()
			return err
		}
		return &common.RetryableError{Err: err, Retryable: false}
	}, s.retry)
}

func (s *Session) ensureConnectedLocked(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.client != nil {
		return nil
	}

	address := net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", common.ErrMailboxUnavailable, address, err)
	}

	if s.opts.UseTLS {
		tlsConn := tls.Client(conn, &tls.Config{
			ServerName:         s.opts.Host,
			InsecureSkipVerify: s.opts.InsecureSkipVerify,
		})
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return fmt.Errorf("%w: tls handshake with %s: %v",
				common.ErrMailboxUnavailable, address, err)
		}
		conn = tlsConn
	}

	client := imapclient.New(conn, nil)

	// Expiry closes the half-open connection so a server that accepts TCP but
	// never speaks IMAP cannot block greeting or login past the deadline.
	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	defer stop()

	if err := client.WaitGreeting(); err != nil {
		_ = client.Close()
		return fmt.Errorf("%w: greeting from %s: %v",
			common.ErrMailboxUnavailable, address, err)
	}

	if err := client.Login(s.opts.Username, s.opts.Password).Wait(); err != nil {
		_ = client.Close()
		if ctx.Err() != nil {
			return fmt.Errorf("%w: login to %s: %v",
				common.ErrMailboxUnavailable, address, err)
		}
		return &common.RetryableError{
			Err:       fmt.Errorf("imap login failed for %s: %w", s.opts.Username, err),
			Retryable: false,
		}
	}

	for _, folder := range s.folders.All() {
		if err := ensureFolder(client, folder); err != nil {
			_ = client.Close()
			return err
		}
	}

	slog.Debug("IMAP session established",
		"address", address, "user", s.opts.Username, "tls", s.opts.UseTLS)

	s.client = client
	s.selected = ""
	return nil
}

func (s *Session) resetLocked() {
	if s.client != nil {
		_ = s.client.Close()
	}
	s.client = nil
	s.selected = ""
}

func (s *Session) selectFolder(client *imapclient.Client, folder string) error {
	if s.selected == folder {
		return nil
	}
	if _, err := client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("select %s: %w", folder, err)
	}
	s.selected = folder
	return nil
}

// locate finds the folder and UID currently holding the message, checking the
// inbox first and then each priority folder.
func (s *Session) locate(client *imapclient.Client, messageID string) (string, imap.UID, error) {
	id := canonicalID(messageID)
	if id == "" {
		return "", 0, fmt.Errorf("message id is empty: %w", common.ErrNotFound)
	}

	for _, folder := range s.searchFolders() {
		if err := s.selectFolder(client, folder); err != nil {
			return "", 0, err
		}

		criteria := &imap.SearchCriteria{
			Header: []imap.SearchCriteriaHeaderField{
				{Key: "Message-Id", Value: id},
			},
		}
		data, err := client.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return "", 0, fmt.Errorf("search %s in %s: %w", id, folder, err)
		}

		if uids := data.AllUIDs(); len(uids) > 0 {
			return folder, uids[0], nil
		}
	}

	return "", 0, fmt.Errorf("message %s: %w", id, common.ErrNotFound)
}

func (s *Session) searchFolders() []string {
	folders := []string{s.opts.Inbox}
	for _, f := range s.folders.All() {
		if f != s.opts.Inbox {
			folders = append(folders, f)
		}
	}
	return folders
}

func isTransient(err error) bool {
	if common.IsRetryable(err) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	// go-imap surfaces a closed connection as a plain error.
	msg := err.Error()
	return strings.Contains(msg, "connection closed") || strings.Contains(msg, "broken pipe")
}

// canonicalID strips the angle brackets some servers include around the
// Message-ID header value.
func canonicalID(id string) string {
	return strings.Trim(strings.TrimSpace(id), "<>")
}
