package passkey

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidToken           = errors.New("invalid token")
	ErrChallengeExpired       = errors.New("challenge expired or invalid")
	ErrChallengeMismatch      = errors.New("challenge mismatch")
	ErrOriginMismatch         = errors.New("origin mismatch")
	ErrInvalidOperationType   = errors.New("invalid operation type")
	ErrInvalidClientData      = errors.New("invalid client data")
	ErrCredentialNotFound     = errors.New("credential not found")
	ErrUserNotFound           = errors.New("user not found")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidManagementToken = errors.New("invalid or expired management token")
)

// Result codes carried in the response envelope.
const (
	CodeSuccess  = 0
	CodeFail     = 1000
	CodeNotFound = 1404
)

// CodeFor maps a flow error onto its envelope code.
func CodeFor(err error) int {
	switch {
	case err == nil:
		return CodeSuccess
	case errors.Is(err, ErrCredentialNotFound):
		return CodeNotFound
	default:
		return CodeFail
	}
}

func invalidInput(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, msg)
}

func verificationFailed(err error) error {
	return fmt.Errorf("verification failed: %w", err)
}
