package chips

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func record(date string, storeId StoreId, balance int64) HistoryRecord {
	return HistoryRecord{Date: date, StoreId: storeId, CurrentBalance: balance}
}

func TestMerge(t *testing.T) {
	assert := assert.New(t)

	merged := Merge([]HistoryRecord{
		record("2025-02-01", "6", 1),
		record("2025-03-10", "6", 2),
		record("2025-02-01", "6", 3),
		record("2025-02-01", "7", 4),
		record("2025-01-31", "6", 5),
	})
	assert.Equal([]HistoryRecord{
		record("2025-03-10", "6", 2),
		record("2025-02-01", "6", 1),
		record("2025-02-01", "7", 4),
		record("2025-01-31", "6", 5),
	}, merged)
}

func TestMergeIdempotent(t *testing.T) {
	assert := assert.New(t)

	records := []HistoryRecord{
		record("2025-01-02", "6", 1),
		record("2025-01-03", "6", 2),
		record("2025-01-02", "6", 3),
	}
	once := Merge(records)
	assert.Equal(once, Merge(once))
	assert.Equal(once, Merge(append(once, once...)))
}

func TestMergeOrderIndependentAsSet(t *testing.T) {
	assert := assert.New(t)

	forward := Merge([]HistoryRecord{
		record("2025-01-02", "6", 0),
		record("2025-01-05", "7", 0),
		record("2025-01-03", "6", 0),
	})
	backward := Merge([]HistoryRecord{
		record("2025-01-03", "6", 0),
		record("2025-01-05", "7", 0),
		record("2025-01-02", "6", 0),
	})
	assert.Equal(forward, backward)
}

func TestMergeEmpty(t *testing.T) {
	assert := assert.New(t)

	merged := Merge(nil)
	assert.NotNil(merged)
	assert.Empty(merged)
}
