package chips

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

var ErrBatchTooLarge = errors.New("too many periods requested")

var (
	ErrFetchTimeout   = errors.New("upstream timeout")
	ErrUpstreamStatus = errors.New("unexpected upstream status")
	ErrUnparseable    = errors.New("unparseable period")

	// ErrUpstreamUnavailable covers transport failures other than timeouts.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrSignedOut means the upstream redirected a player page to the sign in
	// form; the session's cookies are no longer valid.
	ErrSignedOut = errors.New("upstream session signed out")
)

// HistoryRecord is one day of chip activity at one store.
type HistoryRecord struct {
	Date            string  `json:"date"`
	StoreId         StoreId `json:"store_id"`
	StoreName       string  `json:"store_name"`
	RingChips       int64   `json:"ring_chips"`
	TournamentChips int64   `json:"tournament_chips"`
	Purchase        int64   `json:"purchase"`
	TotalChange     int64   `json:"total_change"`
	CurrentBalance  int64   `json:"current_balance"`
}

type StoreId string

type Store struct {
	Id   StoreId `json:"id"`
	Name string  `json:"name"`
}

// PeriodKey selects one calendar month, formatted as YYYY-MM.
// The empty key stands for the upstream default period.
type PeriodKey string

var periodPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

func (p PeriodKey) Valid() bool {
	return periodPattern.MatchString(string(p))
}

// Before reports whether p is an earlier month than q. Both keys must be valid.
func (p PeriodKey) Before(q PeriodKey) bool {
	return string(p) < string(q)
}

func PeriodOf(t time.Time) PeriodKey {
	return PeriodKey(t.Format("2006-01"))
}

// FetchError describes why one period contributed no records.
type FetchError struct {
	Period PeriodKey
	Kind   error
	Err    error
}

func (e *FetchError) Error() string {
	period := string(e.Period)
	if period == "" {
		period = "default"
	}
	if e.Err == nil {
		return fmt.Sprintf("period %s: %s", period, e.Kind)
	}
	return fmt.Sprintf("period %s: %s: %s", period, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return e.Kind == target
}

type HistoryService interface {
	FetchPeriod(ctx context.Context, session Session, storeId StoreId, period PeriodKey) ([]HistoryRecord, error)

	// FetchBatch never fails because of a single period; failed periods
	// contribute no records.
	FetchBatch(ctx context.Context, session Session, storeId StoreId, periods []PeriodKey) ([]HistoryRecord, error)

	ListStores(ctx context.Context, session Session) ([]Store, error)
}

// PeriodCache keeps results of months that can no longer change.
type PeriodCache interface {
	Lookup(emailHash string, storeId StoreId, period PeriodKey) ([]HistoryRecord, bool, error)

	Save(emailHash string, storeId StoreId, period PeriodKey, records []HistoryRecord) error
}
