package persistent

import (
	"context"
	"fmt"
	"time"

	"github.com/junpoanalyze/chips"
	"github.com/uptrace/bun"
)

type AuditEntry struct {
	bun.BaseModel `bun:"table:audit_entry"`

	Id        int64                  `bun:",pk,autoincrement"`
	CreatedAt time.Time              `bun:",nullzero,notnull,default:current_timestamp"`
	EmailHash string                 `bun:",notnull"`
	Name      string                 `bun:",notnull"`
	Data      map[string]interface{} `bun:",notnull"`
}

func (e *AuditEntry) ToDomain() chips.AuditEntry {
	return chips.AuditEntry{
		Id:        e.Id,
		CreatedAt: e.CreatedAt,
		EmailHash: e.EmailHash,
		Name:      e.Name,
		Data:      e.Data,
	}
}

type AuditStore struct {
	DB *bun.DB
}

var _ chips.AuditStore = (*AuditStore)(nil)

func (s *AuditStore) AddEntry(ctx context.Context, emailHash string, audit chips.Audit) error {
	data := audit.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	_, err := s.DB.NewInsert().
		Model(&AuditEntry{
			EmailHash: emailHash,
			Name:      audit.Name,
			Data:      data,
		}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *AuditStore) ByEmailHash(ctx context.Context, emailHash string, beforeId int64, limit int32) ([]chips.AuditEntry, error) {
	var entries []AuditEntry
	query := s.DB.NewSelect().
		Model((*AuditEntry)(nil)).
		Where("audit_entry.email_hash = ?", emailHash)
	if beforeId >= 0 {
		query = query.Where("audit_entry.id < ?", beforeId)
	}
	err := query.
		Order("audit_entry.id DESC").
		Limit(int(limit)).
		Scan(ctx, &entries)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}

	result := make([]chips.AuditEntry, len(entries))
	for i, e := range entries {
		result[i] = e.ToDomain()
	}
	return result, nil
}
