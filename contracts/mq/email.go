package mq

import "mailroom/internal/model"

// Routing keys on the events exchange.
const (
	RoutingKeyEmailIngested   = "email.ingested"
	RoutingKeyEmailNlpLabeled = "email.nlp.labeled"
)

// QueueNlpLabeled is the durable queue the classification consumer binds to
// the email.nlp.labeled routing key.
const QueueNlpLabeled = "queue.email.nlp-labeled"

// IngestedInternal identifies the stored row for downstream consumers.
type IngestedInternal struct {
	ID             int    `json:"id"`
	GmailMessageID string `json:"gmailMessageId"`
}

// EmailIngestedPayload is published once per newly accepted message; the NLP
// classifier consumes it.
type EmailIngestedPayload struct {
	Internal IngestedInternal `json:"internal"`
	Subject  string           `json:"subject"`
	Content  string           `json:"content"`
}

// NlpLabeledInternal locates the message a classification result belongs to.
// Either field is sufficient.
type NlpLabeledInternal struct {
	ID             int    `json:"id"`
	GmailMessageID string `json:"gmailMessageId"`
}

// NlpLabeledPayload is the classification result coming back from the NLP
// service.
type NlpLabeledPayload struct {
	Internal *NlpLabeledInternal   `json:"internal"`
	Labels   []model.SemanticLabel `json:"labels"`
}
