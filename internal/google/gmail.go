package google

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"mailroom/internal/apperr"
	"mailroom/internal/model"
	"mailroom/pkg/circuitbreaker"
	"mailroom/pkg/metrics"
)

// SettingsReader is the slice of the settings store the factory needs.
type SettingsReader interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
}

// ClientFactory builds Gmail clients bound to the granted super account. The
// refresh token is re-read from settings on every build, so a re-grant takes
// effect without a restart.
type ClientFactory struct {
	oauth    *OAuth
	settings SettingsReader
	breaker  *circuitbreaker.CircuitBreaker
}

func NewClientFactory(oauth *OAuth, settings SettingsReader) *ClientFactory {
	return &ClientFactory{
		oauth:    oauth,
		settings: settings,
		breaker:  circuitbreaker.New(circuitbreaker.DefaultConfig()),
	}
}

// Client returns a mailbox client for the configured super account, or a
// ConfigError when no account has been granted yet.
func (f *ClientFactory) Client(ctx context.Context) (*Client, error) {
	var account model.SuperAccount
	ok, err := f.settings.Get(ctx, model.SettingSuperAccount, &account)
	if err != nil {
		return nil, fmt.Errorf("read super account setting: %w", err)
	}
	if !ok || account.Email == "" || account.RefreshToken == "" {
		return nil, apperr.Config("no mailbox account has been granted")
	}

	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(f.oauth.httpClient(ctx, account.RefreshToken)))
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Client{svc: svc, breaker: f.breaker}, nil
}

// ProfileEmail resolves the address behind freshly exchanged tokens, used by
// the grant flow to record which account was actually granted.
func (f *ClientFactory) ProfileEmail(ctx context.Context, tok *oauth2.Token) (string, error) {
	svc, err := gmailapi.NewService(ctx, option.WithHTTPClient(f.oauth.tokenClient(ctx, tok)))
	if err != nil {
		return "", fmt.Errorf("create gmail service: %w", err)
	}
	profile, err := svc.Users.GetProfile("me").Context(ctx).Do()
	if err != nil {
		return "", apperr.Auth("get profile", err)
	}
	return profile.EmailAddress, nil
}

// Client wraps the Gmail API for one account. All calls go through the shared
// circuit breaker and are recorded in metrics.
type Client struct {
	svc     *gmailapi.Service
	breaker *circuitbreaker.CircuitBreaker
}

func (c *Client) call(op string, fn func() error) error {
	start := time.Now()
	err := c.breaker.Execute(fn)
	status := "ok"
	if err != nil {
		status = "error"
	}
	metrics.RecordGmailCall(op, status, time.Since(start))
	return err
}

// ListMessageIDs returns one page of message ids matching the query, plus the
// token for the next page ("" on the last page). Spam and trash are excluded.
func (c *Client) ListMessageIDs(ctx context.Context, query, pageToken string) ([]string, string, error) {
	var resp *gmailapi.ListMessagesResponse
	err := c.call("messages.list", func() error {
		call := c.svc.Users.Messages.List("me").
			Q(query).
			IncludeSpamTrash(false).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		var callErr error
		resp, callErr = call.Do()
		return callErr
	})
	if err != nil {
		return nil, "", apperr.Transient("gmail list messages", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		ids = append(ids, m.Id)
	}
	return ids, resp.NextPageToken, nil
}

// GetMessage fetches one message in full and extracts the fields the pipeline
// cares about.
func (c *Client) GetMessage(ctx context.Context, id string) (*model.FetchedEmail, error) {
	var msg *gmailapi.Message
	err := c.call("messages.get", func() error {
		var callErr error
		msg, callErr = c.svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, apperr.Transient("gmail get message", err)
	}
	return parseMessage(msg), nil
}

// ListLabels returns the user-defined labels of the mailbox. System labels
// (INBOX, SPAM and friends) are filtered out.
func (c *Client) ListLabels(ctx context.Context) ([]model.ProviderLabel, error) {
	var resp *gmailapi.ListLabelsResponse
	err := c.call("labels.list", func() error {
		var callErr error
		resp, callErr = c.svc.Users.Labels.List("me").Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return nil, apperr.Transient("gmail list labels", err)
	}

	labels := make([]model.ProviderLabel, 0, len(resp.Labels))
	for _, l := range resp.Labels {
		if l.Type == "system" {
			continue
		}
		labels = append(labels, model.ProviderLabel{Name: l.Name, ID: l.Id})
	}
	return labels, nil
}

// CreateLabel creates a user label and returns its id.
func (c *Client) CreateLabel(ctx context.Context, name string) (string, error) {
	var created *gmailapi.Label
	err := c.call("labels.create", func() error {
		var callErr error
		created, callErr = c.svc.Users.Labels.Create("me", &gmailapi.Label{
			Name:                  name,
			LabelListVisibility:   "labelShow",
			MessageListVisibility: "show",
		}).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return "", apperr.Transient("gmail create label", err)
	}
	return created.Id, nil
}

// AddLabels attaches the given label ids to a message. Labels are only ever
// added; existing labels on the message are left untouched.
func (c *Client) AddLabels(ctx context.Context, messageID string, labelIDs []string) error {
	err := c.call("messages.modify", func() error {
		_, callErr := c.svc.Users.Messages.Modify("me", messageID, &gmailapi.ModifyMessageRequest{
			AddLabelIds: labelIDs,
		}).Context(ctx).Do()
		return callErr
	})
	if err != nil {
		return apperr.Transient("gmail modify message", err)
	}
	return nil
}
