package google

import (
	"encoding/base64"
	"net/mail"
	"strings"
	"time"

	"golang.org/x/net/html"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailroom/internal/model"
)

// parseMessage flattens a full-format Gmail message into the model the
// pipeline stores and classifies.
func parseMessage(m *gmailapi.Message) *model.FetchedEmail {
	fetched := &model.FetchedEmail{
		GmailMessageID: m.Id,
		ThreadID:       m.ThreadId,
		LabelIDs:       m.LabelIds,
	}
	if m.Payload == nil {
		return fetched
	}

	fetched.Subject = headerValue(m.Payload, "Subject")
	fetched.HeaderMessageID = headerValue(m.Payload, "Message-ID")
	fetched.SenderName, fetched.SenderEmail = parseFrom(headerValue(m.Payload, "From"))
	fetched.PlainText = extractPlainText(m.Payload)

	if sentAt := parseDate(headerValue(m.Payload, "Date"), m.InternalDate); sentAt != nil {
		fetched.SentAt = sentAt
	}
	return fetched
}

func headerValue(p *gmailapi.MessagePart, name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// parseFrom splits a From header into display name and address. A header that
// does not parse yields empty values, which the sender policy then rejects.
func parseFrom(from string) (name, email string) {
	addr, err := mail.ParseAddress(from)
	if err != nil {
		return "", ""
	}
	return addr.Name, strings.ToLower(addr.Address)
}

func parseDate(header string, internalDate int64) *time.Time {
	if header != "" {
		if t, err := mail.ParseDate(header); err == nil {
			t = t.UTC()
			return &t
		}
	}
	if internalDate > 0 {
		t := time.UnixMilli(internalDate).UTC()
		return &t
	}
	return nil
}

// extractPlainText walks the MIME tree and returns the message body as plain
// text. text/plain parts win; when a message only carries text/html the
// markup is stripped.
func extractPlainText(p *gmailapi.MessagePart) string {
	if plain := collectParts(p, "text/plain"); plain != "" {
		return strings.TrimSpace(plain)
	}
	if rawHTML := collectParts(p, "text/html"); rawHTML != "" {
		return strings.TrimSpace(htmlToText(rawHTML))
	}
	return ""
}

// collectParts concatenates the decoded bodies of every part with the given
// MIME type, recursing through multipart containers.
func collectParts(p *gmailapi.MessagePart, mimeType string) string {
	if p == nil {
		return ""
	}
	var sb strings.Builder
	if p.MimeType == mimeType && p.Body != nil && p.Body.Data != "" {
		sb.WriteString(decodeBody(p.Body.Data))
	}
	for _, child := range p.Parts {
		sb.WriteString(collectParts(child, mimeType))
	}
	return sb.String()
}

// decodeBody decodes the body data Gmail returns. The API uses URL-safe
// base64 without padding, but padded payloads show up in the wild too.
func decodeBody(data string) string {
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}

// htmlToText strips markup from an HTML body, keeping only visible text.
func htmlToText(raw string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(raw))
	var sb strings.Builder
	skipDepth := 0
	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return collapseWhitespace(sb.String())
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "head":
				skipDepth++
			case "br", "p", "div", "tr", "li":
				sb.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			switch string(name) {
			case "script", "style", "head":
				if skipDepth > 0 {
					skipDepth--
				}
			}
		case html.TextToken:
			if skipDepth == 0 {
				sb.Write(tokenizer.Text())
			}
		}
	}
}

func collapseWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
