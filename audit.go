package chips

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const (
	AuditLoginSucceeded = "login_succeeded"
	AuditLoginFailed    = "login_failed"
	AuditSessionEnded   = "session_ended"
	AuditSessionExpired = "session_expired"
)

type Audit struct {
	Name string
	Data map[string]interface{}
}

type AuditEntry struct {
	Id        int64
	CreatedAt time.Time
	EmailHash string
	Name      string
	Data      map[string]interface{}
}

type AuditStore interface {
	AddEntry(ctx context.Context, emailHash string, audit Audit) error

	// "beforeId" - get entries before entry with given id. If lower than 0 then gets recent entries up to "limit".
	// Entries are returned newest first.
	ByEmailHash(ctx context.Context, emailHash string, beforeId int64, limit int32) ([]AuditEntry, error)
}

// HashEmail is the one-way identity under which a user's audit entries and
// cached periods are kept.
func HashEmail(email string) string {
	sum := sha256.Sum256([]byte(email))
	return hex.EncodeToString(sum[:])
}
