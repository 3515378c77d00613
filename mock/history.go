package mock

import (
	"context"

	"github.com/junpoanalyze/chips"
)

type HistoryService struct {
	FetchPeriodFn func(ctx context.Context, session chips.Session,
		storeId chips.StoreId, period chips.PeriodKey) ([]chips.HistoryRecord, error)

	FetchBatchFn func(ctx context.Context, session chips.Session,
		storeId chips.StoreId, periods []chips.PeriodKey) ([]chips.HistoryRecord, error)

	ListStoresFn func(ctx context.Context, session chips.Session) ([]chips.Store, error)
}

func (s HistoryService) FetchPeriod(ctx context.Context, session chips.Session,
	storeId chips.StoreId, period chips.PeriodKey) ([]chips.HistoryRecord, error) {
	return s.FetchPeriodFn(ctx, session, storeId, period)
}

func (s HistoryService) FetchBatch(ctx context.Context, session chips.Session,
	storeId chips.StoreId, periods []chips.PeriodKey) ([]chips.HistoryRecord, error) {
	return s.FetchBatchFn(ctx, session, storeId, periods)
}

func (s HistoryService) ListStores(ctx context.Context, session chips.Session) ([]chips.Store, error) {
	return s.ListStoresFn(ctx, session)
}
