package chips

import (
	"context"
	"net/url"
)

// Landing is where the upstream sign-in redirect chain ended.
type Landing struct {
	URL        *url.URL
	StatusCode int
}

// Upstream is a cookie-holding client of the third-party site. One instance
// belongs to exactly one login attempt or session.
type Upstream interface {
	SignInPage(ctx context.Context) ([]byte, error)

	SignIn(ctx context.Context, form url.Values) (Landing, error)

	// ChipHistories fetches the history page. An empty period requests the
	// upstream default month.
	ChipHistories(ctx context.Context, storeId StoreId, period PeriodKey) ([]byte, error)

	StoresPage(ctx context.Context) ([]byte, error)
}
