package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordRoundTrip(t *testing.T) {
	hash, err := hashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.True(t, checkPassword("hunter2hunter2", hash))
	assert.False(t, checkPassword("hunter3hunter3", hash))
}

func TestCheckPasswordEmptyHashNeverMatches(t *testing.T) {
	assert.False(t, checkPassword("anything", ""))
}

func TestCreateUserRejectsWeakPassword(t *testing.T) {
	s := NewService(nil, "secret")
	_, err := s.CreateUser(context.Background(), "op@example.com", "short", "user")
	assert.ErrorIs(t, err, ErrWeakPassword)
}

func TestCreateUserRejectsUnknownRole(t *testing.T) {
	s := NewService(nil, "secret")
	_, err := s.CreateUser(context.Background(), "op@example.com", "longenough", "superuser")
	assert.ErrorIs(t, err, ErrUnknownRole)
}
