package mailbox

import (
	"bytes"
	"html"
	"io"
	"regexp"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/sortdesk/mailtriage/internal/feature"
	"github.com/sortdesk/mailtriage/internal/model"
)

const summarySentences = 2

// buildMessage turns a fetched buffer into an immutable message snapshot.
func buildMessage(buf *imapclient.FetchMessageBuffer, section *imap.FetchItemBodySection, folder string) *model.Message {
	msg := &model.Message{Folder: folder}

	if buf.Envelope != nil {
		msg.ID = canonicalID(buf.Envelope.MessageID)
		msg.Subject = buf.Envelope.Subject
		msg.ReceivedAt = buf.Envelope.Date
	}
	if msg.Subject == "" {
		msg.Subject = "(No Subject)"
	}

	if raw := buf.FindBodySection(section); raw != nil {
		msg.Body = extractText(raw)
	}
	msg.Summary = feature.Summarize(feature.Clean(msg.Body), summarySentences)

	return msg
}

// extractText pulls readable text out of a raw RFC 2822 message. It prefers
// the text/plain part and falls back to stripped text/html.
func extractText(raw []byte) string {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		// Unparseable MIME; treat the payload as plain text.
		return string(raw)
	}
	defer func() { _ = mr.Close() }()

	var htmlBody string
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		body, readErr := io.ReadAll(part.Body)
		if readErr != nil {
			continue
		}

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(body)
		case strings.HasPrefix(contentType, "text/html"):
			htmlBody = string(body)
		}
	}

	return stripHTML(htmlBody)
}

var (
	htmlTagRe        = regexp.MustCompile(`(?s)<(script|style)\b.*?</(script|style)>|<[^>]*>`)
	htmlTagSimpleRe  = regexp.MustCompile(`<[^>]*>`)
	htmlBreakBlockRe = regexp.MustCompile(`(?i)<(br|/p|/div|/tr|/li)[^>]*>`)
)

// stripHTML reduces an HTML body to its visible text.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	s = htmlBreakBlockRe.ReplaceAllString(s, "\n")
	s = htmlTagRe.ReplaceAllString(s, " ")
	s = htmlTagSimpleRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(html.UnescapeString(s))
}

// GmailLink builds a deep link that opens the message in the Gmail web
// client via an rfc822msgid search.
func GmailLink(messageID string) string {
	id := canonicalID(messageID)
	if id == "" {
		return ""
	}
	return "https://mail.google.com/mail/u/0/#search/rfc822msgid:" + id
}
