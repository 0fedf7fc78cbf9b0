// Package grants handles the one-time OAuth consent flow that binds the
// service to its mailbox account.
package grants

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/oauth2"
	"go.uber.org/zap"

	"mailroom/internal/apperr"
	"mailroom/internal/model"
)

type authorizer interface {
	AuthURL() string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

type profileResolver interface {
	ProfileEmail(ctx context.Context, tok *oauth2.Token) (string, error)
}

type settingsWriter interface {
	Set(ctx context.Context, key string, value interface{}) error
}

// Service exchanges authorization codes and persists the granted account.
type Service struct {
	oauth    authorizer
	profiles profileResolver
	settings settingsWriter
	logger   *zap.Logger
}

func NewService(oauth authorizer, profiles profileResolver, settings settingsWriter, logger *zap.Logger) *Service {
	return &Service{oauth: oauth, profiles: profiles, settings: settings, logger: logger}
}

// AuthURL returns the consent URL an operator visits to grant the mailbox.
func (s *Service) AuthURL() string {
	return s.oauth.AuthURL()
}

// Grant redeems an authorization code and stores the resulting account. The
// exchange must yield a refresh token; without one the sync engine could
// never reconnect, so the grant is rejected outright.
func (s *Service) Grant(ctx context.Context, code string) (string, error) {
	tok, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return "", err
	}
	if tok.RefreshToken == "" {
		return "", apperr.Auth("code exchange", errors.New("no refresh token in response, revoke the app's access and grant again"))
	}

	email, err := s.profiles.ProfileEmail(ctx, tok)
	if err != nil {
		return "", err
	}

	account := model.SuperAccount{Email: email, RefreshToken: tok.RefreshToken}
	if err := s.settings.Set(ctx, model.SettingSuperAccount, account); err != nil {
		return "", fmt.Errorf("persist granted account: %w", err)
	}

	s.logger.Info("mailbox account granted", zap.String("email", email))
	return email, nil
}
