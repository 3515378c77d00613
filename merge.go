package chips

import (
	"slices"
	"strings"
)

type recordKey struct {
	date    string
	storeId StoreId
}

// Merge drops records whose (date, store) pair was already seen and orders the
// rest by date, most recent first.
func Merge(records []HistoryRecord) []HistoryRecord {
	seen := make(map[recordKey]struct{}, len(records))
	merged := make([]HistoryRecord, 0, len(records))
	for _, record := range records {
		key := recordKey{date: record.Date, storeId: record.StoreId}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, record)
	}
	slices.SortStableFunc(merged, func(a, b HistoryRecord) int {
		return strings.Compare(b.Date, a.Date)
	})
	return merged
}
