package mock

import (
	"context"

	"github.com/junpoanalyze/chips"
)

type Authenticator struct {
	LoginFn func(ctx context.Context, email string, password string) (chips.Session, error)
}

func (a Authenticator) Login(ctx context.Context, email string, password string) (chips.Session, error) {
	return a.LoginFn(ctx, email, password)
}
