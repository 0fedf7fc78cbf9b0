package google

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmailapi "google.golang.org/api/gmail/v1"
)

func encodeBody(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func textPart(mimeType, body string) *gmailapi.MessagePart {
	return &gmailapi.MessagePart{
		MimeType: mimeType,
		Body:     &gmailapi.MessagePartBody{Data: encodeBody(body)},
	}
}

func TestParseFrom(t *testing.T) {
	name, email := parseFrom(`"Registrar Office" <Registrar@School.EDU>`)
	assert.Equal(t, "Registrar Office", name)
	assert.Equal(t, "registrar@school.edu", email)

	name, email = parseFrom("plain@school.edu")
	assert.Equal(t, "", name)
	assert.Equal(t, "plain@school.edu", email)

	name, email = parseFrom("not an address")
	assert.Equal(t, "", name)
	assert.Equal(t, "", email)
}

func TestExtractPlainTextPrefersPlainPart(t *testing.T) {
	payload := &gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			textPart("text/plain", "hello world"),
			textPart("text/html", "<p>hello <b>world</b></p>"),
		},
	}

	assert.Equal(t, "hello world", extractPlainText(payload))
}

func TestExtractPlainTextFallsBackToHTML(t *testing.T) {
	payload := &gmailapi.MessagePart{
		MimeType: "multipart/alternative",
		Parts: []*gmailapi.MessagePart{
			textPart("text/html", "<html><head><style>p{color:red}</style></head><body><p>first line</p><p>second line</p></body></html>"),
		},
	}

	assert.Equal(t, "first line\nsecond line", extractPlainText(payload))
}

func TestExtractPlainTextWalksNestedParts(t *testing.T) {
	payload := &gmailapi.MessagePart{
		MimeType: "multipart/mixed",
		Parts: []*gmailapi.MessagePart{
			{
				MimeType: "multipart/alternative",
				Parts: []*gmailapi.MessagePart{
					textPart("text/plain", "nested body"),
				},
			},
			{MimeType: "application/pdf", Body: &gmailapi.MessagePartBody{AttachmentId: "att-1"}},
		},
	}

	assert.Equal(t, "nested body", extractPlainText(payload))
}

func TestDecodeBodyAcceptsPaddedBase64(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("padded?"))
	assert.Equal(t, "padded?", decodeBody(padded))
	assert.Equal(t, "", decodeBody("!!not base64!!"))
}

func TestParseMessage(t *testing.T) {
	msg := &gmailapi.Message{
		Id:           "gm-1",
		ThreadId:     "thread-1",
		InternalDate: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC).UnixMilli(),
		Payload: &gmailapi.MessagePart{
			MimeType: "text/plain",
			Body:     &gmailapi.MessagePartBody{Data: encodeBody("body text")},
			Headers: []*gmailapi.MessagePartHeader{
				{Name: "Subject", Value: "Enrollment deadline"},
				{Name: "From", Value: "Registrar <registrar@school.edu>"},
				{Name: "Message-ID", Value: "<abc@school.edu>"},
				{Name: "Date", Value: "Sun, 01 Mar 2026 09:30:00 +0000"},
			},
		},
	}

	fetched := parseMessage(msg)
	assert.Equal(t, "gm-1", fetched.GmailMessageID)
	assert.Equal(t, "thread-1", fetched.ThreadID)
	assert.Equal(t, "Enrollment deadline", fetched.Subject)
	assert.Equal(t, "<abc@school.edu>", fetched.HeaderMessageID)
	assert.Equal(t, "Registrar", fetched.SenderName)
	assert.Equal(t, "registrar@school.edu", fetched.SenderEmail)
	assert.Equal(t, "body text", fetched.PlainText)
	require.NotNil(t, fetched.SentAt)
	assert.Equal(t, time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC), *fetched.SentAt)
}

func TestParseMessageFallsBackToInternalDate(t *testing.T) {
	internal := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	msg := &gmailapi.Message{
		Id:           "gm-2",
		InternalDate: internal.UnixMilli(),
		Payload:      &gmailapi.MessagePart{},
	}

	fetched := parseMessage(msg)
	require.NotNil(t, fetched.SentAt)
	assert.Equal(t, internal, *fetched.SentAt)
}

func TestParseMessageWithoutPayload(t *testing.T) {
	fetched := parseMessage(&gmailapi.Message{Id: "gm-3"})
	assert.Equal(t, "gm-3", fetched.GmailMessageID)
	assert.Empty(t, fetched.PlainText)
	assert.Nil(t, fetched.SentAt)
}
