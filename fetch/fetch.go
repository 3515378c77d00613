// Package fetch retrieves chip history periods through a process wide pool of
// upstream request slots.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/junpoanalyze/chips"
	"github.com/junpoanalyze/chips/scrape"
	"github.com/junpoanalyze/chips/upstream"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

const (
	DefaultWorkers    = 10
	DefaultBatchLimit = 24
	DefaultTimeout    = 10 * time.Second
)

type Fetcher struct {
	slots      *semaphore.Weighted
	workers    int
	batchLimit int
	timeout    time.Duration
	cache      chips.PeriodCache
	location   *time.Location
	now        func() time.Time
}

var _ chips.HistoryService = (*Fetcher)(nil)

type Option func(*Fetcher)

// WithWorkers sets how many upstream requests may be in flight at once across
// all callers of the fetcher.
func WithWorkers(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.workers = n
		}
	}
}

func WithBatchLimit(n int) Option {
	return func(f *Fetcher) {
		if n > 0 {
			f.batchLimit = n
		}
	}
}

// WithTimeout sets the deadline of a single period request.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithCache enables caching of months that are already over.
func WithCache(cache chips.PeriodCache) Option {
	return func(f *Fetcher) { f.cache = cache }
}

// WithLocation sets the time zone that decides when a month is over.
func WithLocation(loc *time.Location) Option {
	return func(f *Fetcher) {
		if loc != nil {
			f.location = loc
		}
	}
}

func New(opts ...Option) *Fetcher {
	f := &Fetcher{
		workers:    DefaultWorkers,
		batchLimit: DefaultBatchLimit,
		timeout:    DefaultTimeout,
		location:   time.UTC,
		now:        time.Now,
	}
	for _, o := range opts {
		o(f)
	}
	f.slots = semaphore.NewWeighted(int64(f.workers))
	return f
}

func (f *Fetcher) BatchLimit() int {
	return f.batchLimit
}

func (f *Fetcher) FetchBatch(ctx context.Context, session chips.Session,
	storeId chips.StoreId, periods []chips.PeriodKey) ([]chips.HistoryRecord, error) {
	if len(periods) > f.batchLimit {
		return nil, fmt.Errorf("%w: %d periods, limit is %d", chips.ErrBatchTooLarge, len(periods), f.batchLimit)
	}

	log := logrus.
		WithField("batch", uuid.New().String()).
		WithField("session", session.LogId()).
		WithField("store", storeId)

	results := make([][]chips.HistoryRecord, len(periods))
	failures := make([]error, len(periods))
	err := session.Use(ctx, func(client chips.Upstream) error {
		var group errgroup.Group
		for i, period := range periods {
			i, period := i, period
			group.Go(func() error {
				records, err := f.fetchUnit(ctx, client, session.EmailHash, storeId, period)
				if err != nil {
					failures[i] = err
					log.WithError(err).WithField("period", period).Warningln("Could not fetch period.")
					return nil
				}
				results[i] = records
				return nil
			})
		}
		return group.Wait()
	})
	if err != nil {
		return nil, fmt.Errorf("use session: %w", err)
	}

	// A signed out session fails every period alike, so it fails the batch
	// instead of answering with an empty history.
	failed := 0
	for _, err := range failures {
		if errors.Is(err, chips.ErrSignedOut) {
			return nil, err
		}
		if err != nil {
			failed++
		}
	}

	all := make([]chips.HistoryRecord, 0)
	for _, records := range results {
		all = append(all, records...)
	}
	merged := chips.Merge(all)
	log.
		WithField("periods", len(periods)).
		WithField("failed", failed).
		WithField("records", len(merged)).
		Infoln("Batch fetched.")
	return merged, nil
}

func (f *Fetcher) FetchPeriod(ctx context.Context, session chips.Session,
	storeId chips.StoreId, period chips.PeriodKey) ([]chips.HistoryRecord, error) {
	var records []chips.HistoryRecord
	err := session.Use(ctx, func(client chips.Upstream) error {
		var err error
		records, err = f.fetchUnit(ctx, client, session.EmailHash, storeId, period)
		return err
	})
	if err != nil {
		return nil, err
	}
	return chips.Merge(records), nil
}

func (f *Fetcher) ListStores(ctx context.Context, session chips.Session) ([]chips.Store, error) {
	var stores []chips.Store
	err := session.Use(ctx, func(client chips.Upstream) error {
		if err := f.slots.Acquire(ctx, 1); err != nil {
			return fetchError("", err)
		}
		defer f.slots.Release(1)

		unitCtx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		body, err := client.StoresPage(unitCtx)
		if err != nil {
			return fetchError("", err)
		}
		stores = scrape.ParseStores(body)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("stores page: %w", err)
	}
	return stores, nil
}

// fetchUnit fetches and parses one period. Every returned error is a
// *chips.FetchError.
func (f *Fetcher) fetchUnit(ctx context.Context, client chips.Upstream, emailHash string,
	storeId chips.StoreId, period chips.PeriodKey) ([]chips.HistoryRecord, error) {
	if period != "" && !period.Valid() {
		return nil, &chips.FetchError{Period: period, Kind: chips.ErrUnparseable}
	}

	cacheable := f.cache != nil && f.closed(period)
	if cacheable {
		records, ok, err := f.cache.Lookup(emailHash, storeId, period)
		switch {
		case err != nil:
			logrus.WithError(err).WithField("period", period).Warningln("Could not read period cache.")
		case ok:
			return records, nil
		}
	}

	if err := f.slots.Acquire(ctx, 1); err != nil {
		return nil, fetchError(period, err)
	}
	defer f.slots.Release(1)

	unitCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	body, err := client.ChipHistories(unitCtx, storeId, period)
	if err != nil {
		return nil, fetchError(period, err)
	}

	records, recognized := scrape.ParseHistory(body)
	for i := range records {
		records[i].StoreId = storeId
	}
	if !recognized {
		logrus.
			WithField("period", period).
			WithField("store", storeId).
			Warningln("History page has no history layout, not caching it.")
		cacheable = false
	}

	if cacheable {
		if err := f.cache.Save(emailHash, storeId, period, records); err != nil {
			logrus.WithError(err).WithField("period", period).Warningln("Could not save period to cache.")
		}
	}
	return records, nil
}

// closed reports whether the month is over in the fetcher's time zone, so
// its history can no longer change.
func (f *Fetcher) closed(period chips.PeriodKey) bool {
	if period == "" {
		return false
	}
	return period.Before(chips.PeriodOf(f.now().In(f.location)))
}

func fetchError(period chips.PeriodKey, err error) *chips.FetchError {
	var statusErr *upstream.StatusError
	switch {
	case upstream.IsTimeout(err):
		return &chips.FetchError{Period: period, Kind: chips.ErrFetchTimeout, Err: err}
	case errors.Is(err, chips.ErrSignedOut):
		return &chips.FetchError{Period: period, Kind: chips.ErrSignedOut, Err: err}
	case errors.As(err, &statusErr):
		return &chips.FetchError{Period: period, Kind: chips.ErrUpstreamStatus, Err: err}
	default:
		return &chips.FetchError{Period: period, Kind: chips.ErrUpstreamUnavailable, Err: err}
	}
}
