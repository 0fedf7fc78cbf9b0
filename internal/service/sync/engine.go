// Package sync implements the incremental mailbox pull: one pass lists new
// messages since the stored cursor, filters them through the sender policy,
// persists them exactly once and publishes an event per accepted message.
package sync

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"mailroom/contracts/mq"
	"mailroom/internal/apperr"
	"mailroom/internal/model"
	"mailroom/pkg/logger"
	"mailroom/pkg/metrics"
)

// ErrSyncInProgress is returned when a pass is requested while another is
// still running. The caller just waits for the next tick.
var ErrSyncInProgress = errors.New("a sync pass is already in progress")

const defaultLookback = 24 * time.Hour

// Mailbox is the slice of the provider client the engine needs.
type Mailbox interface {
	ListMessageIDs(ctx context.Context, query, pageToken string) ([]string, string, error)
	GetMessage(ctx context.Context, id string) (*model.FetchedEmail, error)
}

// MailboxFactory yields a fresh mailbox client per pass.
type MailboxFactory interface {
	Mailbox(ctx context.Context) (Mailbox, error)
}

// EmailStore persists accepted messages.
type EmailStore interface {
	Insert(ctx context.Context, e *model.Email) (int, error)
	FilterExisting(ctx context.Context, gmailIDs []string) (map[string]struct{}, error)
}

// UserStore supplies the admin addresses for the sender policy.
type UserStore interface {
	FindActiveAdminEmails(ctx context.Context) ([]string, error)
}

// Settings reads and writes the pull cursor and policy configuration.
type Settings interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
}

// Publisher emits events onto the bus.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload interface{}) error
}

// Engine runs sync passes. At most one pass runs at a time; overlapping
// triggers are rejected with ErrSyncInProgress.
type Engine struct {
	mailbox  MailboxFactory
	emails   EmailStore
	users    UserStore
	settings Settings
	bus      Publisher
	logger   *zap.Logger
	maxPages int

	running atomic.Bool
	now     func() time.Time
}

func NewEngine(mailbox MailboxFactory, emails EmailStore, users UserStore, settings Settings, bus Publisher, maxPages int, logger *zap.Logger) *Engine {
	return &Engine{
		mailbox:  mailbox,
		emails:   emails,
		users:    users,
		settings: settings,
		bus:      bus,
		logger:   logger,
		maxPages: maxPages,
		now:      time.Now,
	}
}

// PassResult summarizes one completed pass.
type PassResult struct {
	Fetched  int `json:"fetched"`
	Ingested int `json:"ingested"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// RunPass executes one full sync pass. The cursor only advances when every
// page was listed successfully; per-message failures are logged and counted
// but never abort the pass.
func (e *Engine) RunPass(ctx context.Context) (*PassResult, error) {
	if !e.running.CompareAndSwap(false, true) {
		metrics.RecordSyncPass("skipped", 0)
		return nil, ErrSyncInProgress
	}
	defer e.running.Store(false)

	start := e.now()
	result, err := e.runPass(ctx, start)
	if err != nil {
		metrics.RecordSyncPass("error", time.Since(start))
		return nil, err
	}
	metrics.RecordSyncPass("ok", time.Since(start))
	return result, nil
}

func (e *Engine) runPass(ctx context.Context, triggeredAt time.Time) (*PassResult, error) {
	since, err := e.resolveSince(ctx, triggeredAt)
	if err != nil {
		return nil, err
	}

	policy, err := e.buildPolicy(ctx)
	if err != nil {
		return nil, err
	}

	mailbox, err := e.mailbox.Mailbox(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := e.listSince(ctx, mailbox, since)
	if err != nil {
		return nil, err
	}

	result := &PassResult{Fetched: len(ids)}
	if len(ids) > 0 {
		existing, err := e.emails.FilterExisting(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("filter existing messages: %w", err)
		}
		for _, id := range ids {
			if _, dup := existing[id]; dup {
				result.Skipped++
				metrics.IncrementEmailSkipped("duplicate")
				continue
			}
			switch e.ingestOne(ctx, mailbox, policy, id) {
			case ingestOK:
				result.Ingested++
				metrics.IncrementEmailIngested()
			case ingestSkipped:
				result.Skipped++
			case ingestFailed:
				result.Failed++
				metrics.IncrementEmailSkipped("failed")
			}
		}
	}

	// The cursor records when this pass was triggered, not when it finished,
	// so mail arriving mid-pass is re-listed next time instead of lost.
	if err := e.settings.Set(ctx, model.SettingLastPullAt, triggeredAt.UTC().Format(time.RFC3339)); err != nil {
		return nil, fmt.Errorf("advance pull cursor: %w", err)
	}

	logger.WithTrace(ctx, e.logger).Info("sync pass finished",
		zap.Int("fetched", result.Fetched),
		zap.Int("ingested", result.Ingested),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed))
	return result, nil
}

// resolveSince returns the stored cursor, or triggeredAt minus the default
// lookback on the very first pass.
func (e *Engine) resolveSince(ctx context.Context, triggeredAt time.Time) (time.Time, error) {
	var raw string
	ok, err := e.settings.Get(ctx, model.SettingLastPullAt, &raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("read pull cursor: %w", err)
	}
	if !ok || raw == "" {
		return triggeredAt.Add(-defaultLookback), nil
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.Config("stored pull cursor %q is not RFC3339", raw)
	}
	return since, nil
}

func (e *Engine) buildPolicy(ctx context.Context) (*SenderPolicy, error) {
	admins, err := e.users.FindActiveAdminEmails(ctx)
	if err != nil {
		return nil, fmt.Errorf("load admin addresses: %w", err)
	}

	var account model.SuperAccount
	if _, err := e.settings.Get(ctx, model.SettingSuperAccount, &account); err != nil {
		return nil, fmt.Errorf("read super account: %w", err)
	}

	var domains []string
	if _, err := e.settings.Get(ctx, model.SettingAllowedDomains, &domains); err != nil {
		return nil, fmt.Errorf("read allowed domains: %w", err)
	}

	return NewSenderPolicy(admins, account.Email, domains), nil
}

// listSince walks every result page for the window. A listing failure on any
// page aborts the pass so the cursor stays put and nothing in the window is
// silently dropped.
func (e *Engine) listSince(ctx context.Context, mailbox Mailbox, since time.Time) ([]string, error) {
	query := "after:" + strconv.FormatInt(since.Unix(), 10)
	var all []string
	pageToken := ""
	for page := 0; ; page++ {
		if page >= e.maxPages {
			return nil, fmt.Errorf("message listing exceeded %d pages, refusing to finish the pass", e.maxPages)
		}
		ids, next, err := mailbox.ListMessageIDs(ctx, query, pageToken)
		if err != nil {
			return nil, err
		}
		all = append(all, ids...)
		if next == "" {
			return all, nil
		}
		pageToken = next
	}
}

type ingestOutcome int

const (
	ingestOK ingestOutcome = iota
	ingestSkipped
	ingestFailed
)

// ingestOne fetches, filters, persists and publishes a single message. Every
// failure is contained here; a bad message never poisons the rest of the
// pass.
func (e *Engine) ingestOne(ctx context.Context, mailbox Mailbox, policy *SenderPolicy, gmailID string) ingestOutcome {
	fetched, err := mailbox.GetMessage(ctx, gmailID)
	if err != nil {
		e.logger.Warn("fetch message failed", zap.String("gmail_message_id", gmailID), zap.Error(err))
		return ingestFailed
	}

	if !policy.Allows(fetched.SenderEmail) {
		metrics.IncrementEmailSkipped("sender_policy")
		return ingestSkipped
	}

	email := &model.Email{
		GmailMessageID:  fetched.GmailMessageID,
		HeaderMessageID: fetched.HeaderMessageID,
		ThreadID:        fetched.ThreadID,
		Subject:         fetched.Subject,
		SenderName:      fetched.SenderName,
		SenderEmail:     fetched.SenderEmail,
		SentAt:          fetched.SentAt,
		LabelIDs:        fetched.LabelIDs,
	}
	id, err := e.emails.Insert(ctx, email)
	if err != nil {
		// A concurrent insert of the same message is not a failure, the row
		// is already there.
		if apperr.IsDuplicateKey(err) {
			metrics.IncrementEmailSkipped("duplicate")
			return ingestSkipped
		}
		e.logger.Warn("persist message failed", zap.String("gmail_message_id", gmailID), zap.Error(err))
		return ingestFailed
	}

	payload := mq.EmailIngestedPayload{
		Internal: mq.IngestedInternal{ID: id, GmailMessageID: fetched.GmailMessageID},
		Subject:  fetched.Subject,
		Content:  fetched.PlainText,
	}
	if err := e.bus.Publish(ctx, mq.RoutingKeyEmailIngested, payload); err != nil {
		// The row stays and the event is lost, so this message never gets a
		// classification. Losing one event beats double-ingesting the message.
		e.logger.Error("publish ingested event failed",
			zap.Int("email_id", id),
			zap.String("gmail_message_id", gmailID),
			zap.Error(err))
	}
	return ingestOK
}
