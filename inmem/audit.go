package inmem

import (
	"context"
	"sync"
	"time"

	"github.com/junpoanalyze/chips"
)

type AuditStore struct {
	lastId  int64
	entries map[string][]chips.AuditEntry
	mutex   sync.RWMutex
}

var _ chips.AuditStore = (*AuditStore)(nil)

func NewAuditStore() *AuditStore {
	return &AuditStore{
		entries: make(map[string][]chips.AuditEntry),
	}
}

func (s *AuditStore) AddEntry(ctx context.Context, emailHash string, audit chips.Audit) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.lastId++
	s.entries[emailHash] = append(s.entries[emailHash], chips.AuditEntry{
		Id:        s.lastId,
		CreatedAt: time.Now().UTC(),
		EmailHash: emailHash,
		Name:      audit.Name,
		Data:      audit.Data,
	})
	return nil
}

func (s *AuditStore) ByEmailHash(ctx context.Context, emailHash string, beforeId int64, limit int32) ([]chips.AuditEntry, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	entries := s.entries[emailHash]
	result := make([]chips.AuditEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0 && int32(len(result)) < limit; i-- {
		if beforeId >= 0 && entries[i].Id >= beforeId {
			continue
		}
		result = append(result, entries[i])
	}
	return result, nil
}
