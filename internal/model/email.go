package model

import "time"

// Email is one uniquely ingested Gmail message. GmailMessageID is the natural
// key: a message is inserted at most once no matter how many sync passes see it.
type Email struct {
	ID              int
	GmailMessageID  string
	HeaderMessageID string
	ThreadID        string
	Subject         string
	SenderName      string
	SenderEmail     string
	SentAt          *time.Time
	LabelIDs        []string
	// SemanticLabels is nil until the async classifier has decided.
	SemanticLabels []SemanticLabel
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FetchedEmail is the provider-side view of a message after a full fetch,
// before it is persisted.
type FetchedEmail struct {
	GmailMessageID  string
	HeaderMessageID string
	ThreadID        string
	Subject         string
	SenderName      string
	SenderEmail     string
	SentAt          *time.Time
	LabelIDs        []string
	PlainText       string
}
