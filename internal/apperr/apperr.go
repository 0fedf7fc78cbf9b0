// Package apperr defines the error taxonomy of the ingestion pipeline.
// The split matters operationally: config errors are fatal, auth errors
// surface to the caller, transient errors are retried by the next scheduled
// pass, and malformed events are dead-lettered instead of requeued.
package apperr

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// ConfigError marks a missing or invalid piece of configuration. Fatal at
// startup; at runtime it aborts only the operation that needed the config.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Reason
}

func Config(format string, args ...any) error {
	return &ConfigError{Reason: fmt.Sprintf(format, args...)}
}

func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// AuthError marks a rejected credential grant or a revoked refresh token.
// Never silently retried: granting credentials is a deliberate user action.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string {
	return "authentication failed during " + e.Op + ": " + e.Err.Error()
}

func (e *AuthError) Unwrap() error { return e.Err }

func Auth(op string, err error) error {
	return &AuthError{Op: op, Err: err}
}

func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// TransientError wraps a provider or network failure that the next scheduled
// pass (or the broker's redelivery) will naturally retry.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *TransientError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// MalformedEventError marks an event payload that failed validation. The
// consumer rejects it without requeue; redelivering can never succeed.
type MalformedEventError struct {
	Reason string
	Err    error
}

func (e *MalformedEventError) Error() string {
	if e.Err != nil {
		return "malformed event: " + e.Reason + ": " + e.Err.Error()
	}
	return "malformed event: " + e.Reason
}

func (e *MalformedEventError) Unwrap() error { return e.Err }

// Permanent tells the consumer not to requeue.
func (e *MalformedEventError) Permanent() bool { return true }

func Malformed(reason string, err error) error {
	return &MalformedEventError{Reason: reason, Err: err}
}

func IsMalformed(err error) bool {
	var me *MalformedEventError
	return errors.As(err, &me)
}

// IsDuplicateKey reports a unique-constraint violation. Treated as a benign
// race: another pass inserted the same row first.
func IsDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
