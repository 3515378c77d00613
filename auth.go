package chips

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrAuthTimeout        = errors.New("upstream login timeout")
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrProtocolChanged means the upstream login page no longer has the shape
	// the handshake expects. Retrying will not help.
	ErrProtocolChanged = errors.New("upstream login protocol changed")
	ErrAuthUnknown     = errors.New("authentication failed")
)

type AuthError struct {
	Kind error
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

func (e *AuthError) Is(target error) bool {
	return e.Kind == target
}

type Authenticator interface {
	Login(ctx context.Context, email string, password string) (Session, error)
}
