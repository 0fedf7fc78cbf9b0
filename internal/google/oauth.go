// Package google owns the OAuth application credentials and builds
// authenticated Gmail clients for the single configured super account.
package google

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"
	googleauth "golang.org/x/oauth2/google"
	gmailapi "google.golang.org/api/gmail/v1"

	"mailroom/internal/apperr"
	"mailroom/pkg/config"
)

// OAuth holds the static OAuth2 application config. The credential values are
// read-only after startup; per-call clients are built from them on demand.
type OAuth struct {
	config *oauth2.Config
}

func NewOAuth(cfg config.GoogleConfig) (*OAuth, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" || cfg.RedirectURI == "" {
		return nil, apperr.Config("google client_id, client_secret and redirect_uri must all be set")
	}

	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes: []string{
				"openid",
				"email",
				"profile",
				gmailapi.GmailModifyScope,
			},
			Endpoint: googleauth.Endpoint,
		},
	}, nil
}

// AuthURL returns the consent-screen URL for granting the super account.
// Offline access plus a forced consent prompt, so a refresh token is issued
// even on re-grant.
func (o *OAuth) AuthURL() string {
	return o.config.AuthCodeURL("",
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for tokens. A rejection is an
// AuthError for the caller to surface; it is never retried here.
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, apperr.Auth("code exchange", err)
	}
	return tok, nil
}

// httpClient builds a short-lived authorized HTTP client from a stored
// refresh token. Each operation constructs its own client; nothing mutable is
// shared between the sync engine and the classification consumer.
func (o *OAuth) httpClient(ctx context.Context, refreshToken string) *http.Client {
	return o.config.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})
}

// tokenClient builds a client from freshly exchanged tokens, used during the
// grant flow before anything is persisted.
func (o *OAuth) tokenClient(ctx context.Context, tok *oauth2.Token) *http.Client {
	return o.config.Client(ctx, tok)
}
