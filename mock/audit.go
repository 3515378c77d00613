package mock

import (
	"context"

	"github.com/junpoanalyze/chips"
)

type AuditStore struct {
	AddEntryFn func(ctx context.Context, emailHash string, audit chips.Audit) error

	ByEmailHashFn func(ctx context.Context, emailHash string, beforeId int64, limit int32) ([]chips.AuditEntry, error)
}

func (s AuditStore) AddEntry(ctx context.Context, emailHash string, audit chips.Audit) error {
	return s.AddEntryFn(ctx, emailHash, audit)
}

func (s AuditStore) ByEmailHash(ctx context.Context, emailHash string, beforeId int64, limit int32) ([]chips.AuditEntry, error) {
	return s.ByEmailHashFn(ctx, emailHash, beforeId, limit)
}
