// Package mqhandler holds the consumers bound to the events exchange.
package mqhandler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"mailroom/contracts/mq"
	"mailroom/internal/apperr"
	"mailroom/internal/model"
	"mailroom/internal/repository"
)

type emailStore interface {
	FindByID(ctx context.Context, id int) (*model.Email, error)
	FindByGmailMessageID(ctx context.Context, gmailID string) (*model.Email, error)
	UpdateSemanticLabels(ctx context.Context, id int, labels []model.SemanticLabel) error
}

type labelMapper interface {
	GetMapping(ctx context.Context) (model.LabelMapping, error)
}

// LabelWriter is the slice of the provider client the handler needs.
type LabelWriter interface {
	AddLabels(ctx context.Context, messageID string, labelIDs []string) error
}

// MailboxFactory yields a fresh provider client per event.
type MailboxFactory interface {
	Mailbox(ctx context.Context) (LabelWriter, error)
}

type deduper interface {
	AcquireOnce(ctx context.Context, handler string, emailID int) bool
}

// NlpLabeledHandler applies classification results coming back from the NLP
// service: it stores the semantic labels and mirrors them onto the provider
// message.
type NlpLabeledHandler struct {
	emails  emailStore
	labels  labelMapper
	mailbox MailboxFactory
	dedup   deduper
	logger  *zap.Logger
}

func NewNlpLabeledHandler(emails emailStore, labels labelMapper, mailbox MailboxFactory, dedup deduper, logger *zap.Logger) *NlpLabeledHandler {
	return &NlpLabeledHandler{emails: emails, labels: labels, mailbox: mailbox, dedup: dedup, logger: logger}
}

// Handle processes one classification result. A malformed payload is
// rejected permanently; a result for an unknown message is acknowledged and
// dropped; only storage failures are worth a redelivery.
func (h *NlpLabeledHandler) Handle(ctx context.Context, data json.RawMessage) error {
	var payload mq.NlpLabeledPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return apperr.Malformed("classification payload is not valid json", err)
	}
	if payload.Internal == nil || (payload.Internal.ID == 0 && payload.Internal.GmailMessageID == "") {
		return apperr.Malformed("classification payload names no message", nil)
	}
	for _, label := range payload.Labels {
		if !label.Valid() {
			return apperr.Malformed(fmt.Sprintf("unknown semantic label %q", label), nil)
		}
	}

	email, err := h.findEmail(ctx, payload.Internal)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// The message was never ingested here, or was purged. Nothing to
			// retry.
			h.logger.Warn("classification result for unknown message",
				zap.Int("id", payload.Internal.ID),
				zap.String("gmail_message_id", payload.Internal.GmailMessageID))
			return nil
		}
		return fmt.Errorf("find classified message: %w", err)
	}

	if err := h.emails.UpdateSemanticLabels(ctx, email.ID, payload.Labels); err != nil {
		return fmt.Errorf("store semantic labels: %w", err)
	}

	h.applyProviderLabels(ctx, email, payload.Labels)
	return nil
}

func (h *NlpLabeledHandler) findEmail(ctx context.Context, ref *mq.NlpLabeledInternal) (*model.Email, error) {
	if ref.ID != 0 {
		email, err := h.emails.FindByID(ctx, ref.ID)
		if err == nil {
			return email, nil
		}
		if !errors.Is(err, repository.ErrNotFound) || ref.GmailMessageID == "" {
			return nil, err
		}
	}
	return h.emails.FindByGmailMessageID(ctx, ref.GmailMessageID)
}

// applyProviderLabels mirrors stored labels onto the provider message. The
// stored labels are already the source of truth, so every failure in here is
// logged and swallowed; the event is never redelivered for a mirror failure.
func (h *NlpLabeledHandler) applyProviderLabels(ctx context.Context, email *model.Email, semantic []model.SemanticLabel) {
	mapping, err := h.labels.GetMapping(ctx)
	if err != nil {
		h.logger.Warn("load label mapping failed", zap.Int("email_id", email.ID), zap.Error(err))
		return
	}

	labelIDs := make([]string, 0, len(semantic))
	for _, label := range semantic {
		id, ok := mapping[label]
		if !ok || id == "" {
			h.logger.Warn("no provider label mapped, skipping",
				zap.Int("email_id", email.ID),
				zap.String("label", string(label)))
			continue
		}
		labelIDs = append(labelIDs, id)
	}
	if len(labelIDs) == 0 {
		return
	}

	// Redeliveries of the same result must not hammer the provider with the
	// same modify call.
	if !h.dedup.AcquireOnce(ctx, "nlp-labeled", email.ID) {
		h.logger.Info("provider labels already applied", zap.Int("email_id", email.ID))
		return
	}

	mailbox, err := h.mailbox.Mailbox(ctx)
	if err != nil {
		h.logger.Warn("build mailbox client failed", zap.Int("email_id", email.ID), zap.Error(err))
		return
	}
	if err := mailbox.AddLabels(ctx, email.GmailMessageID, labelIDs); err != nil {
		h.logger.Warn("apply provider labels failed",
			zap.Int("email_id", email.ID),
			zap.String("gmail_message_id", email.GmailMessageID),
			zap.Error(err))
		return
	}
	h.logger.Info("provider labels applied",
		zap.Int("email_id", email.ID),
		zap.Strings("label_ids", labelIDs))
}
