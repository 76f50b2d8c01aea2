package model

import "time"

// Message is an immutable snapshot of a mail message as fetched from the
// mailbox. ID is the RFC 822 Message-ID, which stays stable across folder
// moves; re-fetching produces a new snapshot rather than mutating this one.
type Message struct {
	ReceivedAt time.Time
	ID         string
	Subject    string
	Summary    string // derived, truncated body text
	Body       string // normalized full text used for classification
	Folder     string // folder the message was found in when fetched
}
