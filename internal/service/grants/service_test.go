package grants

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"mailroom/internal/apperr"
	"mailroom/internal/model"
)

type fakeOAuth struct {
	token *oauth2.Token
	err   error
}

func (f *fakeOAuth) AuthURL() string { return "https://accounts.example/consent" }

func (f *fakeOAuth) Exchange(context.Context, string) (*oauth2.Token, error) {
	return f.token, f.err
}

type fakeProfiles struct {
	email string
	err   error
}

func (f *fakeProfiles) ProfileEmail(context.Context, *oauth2.Token) (string, error) {
	return f.email, f.err
}

type fakeSettings struct {
	values map[string]any
	setErr error
}

func (s *fakeSettings) Set(_ context.Context, key string, value interface{}) error {
	if s.setErr != nil {
		return s.setErr
	}
	if s.values == nil {
		s.values = map[string]any{}
	}
	s.values[key] = value
	return nil
}

func TestGrantStoresAccount(t *testing.T) {
	settings := &fakeSettings{}
	s := NewService(
		&fakeOAuth{token: &oauth2.Token{RefreshToken: "refresh-1"}},
		&fakeProfiles{email: "inbox@school.edu"},
		settings,
		zap.NewNop(),
	)

	email, err := s.Grant(context.Background(), "code-1")
	require.NoError(t, err)
	assert.Equal(t, "inbox@school.edu", email)

	stored := settings.values[model.SettingSuperAccount].(model.SuperAccount)
	assert.Equal(t, "inbox@school.edu", stored.Email)
	assert.Equal(t, "refresh-1", stored.RefreshToken)
}

func TestGrantRequiresRefreshToken(t *testing.T) {
	settings := &fakeSettings{}
	s := NewService(
		&fakeOAuth{token: &oauth2.Token{AccessToken: "access-only"}},
		&fakeProfiles{email: "inbox@school.edu"},
		settings,
		zap.NewNop(),
	)

	_, err := s.Grant(context.Background(), "code-1")
	require.Error(t, err)
	assert.True(t, apperr.IsAuth(err))
	assert.Empty(t, settings.values)
}

func TestGrantPropagatesExchangeFailure(t *testing.T) {
	s := NewService(
		&fakeOAuth{err: apperr.Auth("code exchange", errors.New("invalid_grant"))},
		&fakeProfiles{},
		&fakeSettings{},
		zap.NewNop(),
	)

	_, err := s.Grant(context.Background(), "bad-code")
	require.Error(t, err)
	assert.True(t, apperr.IsAuth(err))
}

func TestAuthURLPassthrough(t *testing.T) {
	s := NewService(&fakeOAuth{}, &fakeProfiles{}, &fakeSettings{}, zap.NewNop())
	assert.Equal(t, "https://accounts.example/consent", s.AuthURL())
}
