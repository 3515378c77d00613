package persistent

import (
	"testing"
	"time"

	"github.com/junpoanalyze/chips"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/buntdb"
)

func openMemoryBunt(t *testing.T) *buntdb.DB {
	bdb, err := buntdb.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = bdb.Close() })
	return bdb
}

func TestPeriodCache(t *testing.T) {
	assert := assert.New(t)

	cache := &PeriodCache{Buntdb: openMemoryBunt(t), TTL: time.Hour}
	if !assert.NoError(cache.CreateIndexes()) {
		return
	}
	assert.NoError(cache.CreateIndexes())

	_, ok, err := cache.Lookup("hash", "6", "2025-01")
	assert.NoError(err)
	assert.False(ok)

	records := []chips.HistoryRecord{{
		Date:            "2025-01-15",
		StoreId:         "6",
		StoreName:       "Shibuya",
		RingChips:       1200,
		TournamentChips: -300,
		TotalChange:     900,
		CurrentBalance:  15400,
	}}
	if !assert.NoError(cache.Save("hash", "6", "2025-01", records)) {
		return
	}
	assert.NoError(cache.Save("hash", "6", "2024-12", nil))

	got, ok, err := cache.Lookup("hash", "6", "2025-01")
	if assert.NoError(err) && assert.True(ok) {
		assert.Equal(records, got)
	}
	got, ok, err = cache.Lookup("hash", "6", "2024-12")
	if assert.NoError(err) && assert.True(ok) {
		assert.Empty(got)
	}

	// partitioned by user and store
	_, ok, _ = cache.Lookup("other", "6", "2025-01")
	assert.False(ok)
	_, ok, _ = cache.Lookup("hash", "7", "2025-01")
	assert.False(ok)

	n, err := cache.Len()
	if assert.NoError(err) {
		assert.Equal(2, n)
	}
}

func TestPeriodCacheExpires(t *testing.T) {
	assert := assert.New(t)

	cache := &PeriodCache{Buntdb: openMemoryBunt(t), TTL: 50 * time.Millisecond}
	if !assert.NoError(cache.Save("hash", "6", "2025-01", []chips.HistoryRecord{{Date: "2025-01-15"}})) {
		return
	}
	assert.Eventually(func() bool {
		_, ok, err := cache.Lookup("hash", "6", "2025-01")
		return err == nil && !ok
	}, 2*time.Second, 20*time.Millisecond)
}
