package mock

import (
	"context"
	"net/url"

	"github.com/junpoanalyze/chips"
)

type Upstream struct {
	SignInPageFn func(ctx context.Context) ([]byte, error)

	SignInFn func(ctx context.Context, form url.Values) (chips.Landing, error)

	ChipHistoriesFn func(ctx context.Context, storeId chips.StoreId, period chips.PeriodKey) ([]byte, error)

	StoresPageFn func(ctx context.Context) ([]byte, error)
}

func (u *Upstream) SignInPage(ctx context.Context) ([]byte, error) {
	return u.SignInPageFn(ctx)
}

func (u *Upstream) SignIn(ctx context.Context, form url.Values) (chips.Landing, error) {
	return u.SignInFn(ctx, form)
}

func (u *Upstream) ChipHistories(ctx context.Context, storeId chips.StoreId, period chips.PeriodKey) ([]byte, error) {
	return u.ChipHistoriesFn(ctx, storeId, period)
}

func (u *Upstream) StoresPage(ctx context.Context) ([]byte, error) {
	return u.StoresPageFn(ctx)
}
