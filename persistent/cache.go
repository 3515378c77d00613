package persistent

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/junpoanalyze/chips"
	"github.com/tidwall/buntdb"
)

const DefaultPeriodCacheTTL = 6 * time.Hour

// PeriodCache keeps parsed history of closed months in buntdb.
type PeriodCache struct {
	Buntdb *buntdb.DB
	TTL    time.Duration
}

var _ chips.PeriodCache = (*PeriodCache)(nil)

func (c *PeriodCache) CreateIndexes() error {
	if err := c.Buntdb.CreateIndex("periods", "period:*", buntdb.IndexString); err != nil &&
		!errors.Is(err, buntdb.ErrIndexExists) {
		return fmt.Errorf("create periods index: %w", err)
	}
	return nil
}

// Keys are built from the email hash (hex) and validated store ids and
// periods, none of which may contain ':'.
func periodKey(emailHash string, storeId chips.StoreId, period chips.PeriodKey) string {
	return "period:" + emailHash + ":" + strings.ReplaceAll(string(storeId), ":", "_") + ":" + string(period)
}

func (c *PeriodCache) Lookup(emailHash string, storeId chips.StoreId, period chips.PeriodKey) ([]chips.HistoryRecord, bool, error) {
	var records []chips.HistoryRecord
	err := c.Buntdb.View(func(tx *buntdb.Tx) error {
		serialized, err := tx.Get(periodKey(emailHash, storeId, period))
		if err != nil {
			return fmt.Errorf("get period: %w", err)
		}
		if err := json.Unmarshal([]byte(serialized), &records); err != nil {
			return fmt.Errorf("deserialize period: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("buntdb view: %w", err)
	}
	return records, true, nil
}

func (c *PeriodCache) Save(emailHash string, storeId chips.StoreId, period chips.PeriodKey, records []chips.HistoryRecord) error {
	if records == nil {
		records = []chips.HistoryRecord{}
	}
	serialized, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("serialize period: %w", err)
	}
	ttl := c.TTL
	if ttl <= 0 {
		ttl = DefaultPeriodCacheTTL
	}

	err = c.Buntdb.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(periodKey(emailHash, storeId, period), string(serialized),
			&buntdb.SetOptions{Expires: true, TTL: ttl})
		return err
	})
	if err != nil {
		return fmt.Errorf("bunt update: %w", err)
	}
	return nil
}

// Len is the number of cached periods.
func (c *PeriodCache) Len() (int, error) {
	var n int
	err := c.Buntdb.View(func(tx *buntdb.Tx) error {
		var err error
		n, err = tx.Len()
		return err
	})
	return n, err
}
