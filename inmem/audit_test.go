package inmem

import (
	"context"
	"testing"

	"github.com/junpoanalyze/chips"
	"github.com/stretchr/testify/assert"
)

func TestAuditStore(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	const emailHash = "5d41402abc4b2a76b9719d911017c592"

	s := NewAuditStore()
	{
		entries, err := s.ByEmailHash(ctx, emailHash, -1, 100)
		if assert.NoError(err) {
			assert.Equal(0, len(entries))
		}
	}

	assert.NoError(s.AddEntry(ctx, emailHash, chips.Audit{Name: chips.AuditLoginSucceeded}))
	assert.NoError(s.AddEntry(ctx, emailHash, chips.Audit{Name: chips.AuditSessionEnded,
		Data: map[string]interface{}{"session": "abcdefgh..."}}))
	assert.NoError(s.AddEntry(ctx, "someone else", chips.Audit{Name: chips.AuditLoginFailed}))

	var oldest chips.AuditEntry
	{
		entries, err := s.ByEmailHash(ctx, emailHash, -1, 100)
		if !assert.NoError(err) {
			return
		}
		if !assert.Equal(2, len(entries)) {
			return
		}
		assert.Equal(chips.AuditSessionEnded, entries[0].Name)
		assert.Equal(map[string]interface{}{"session": "abcdefgh..."}, entries[0].Data)
		assert.Equal(chips.AuditLoginSucceeded, entries[1].Name)
		assert.Equal(emailHash, entries[1].EmailHash)
		oldest = entries[1]
	}

	{
		entries, err := s.ByEmailHash(ctx, emailHash, oldest.Id, 100)
		if assert.NoError(err) {
			assert.Equal(0, len(entries))
		}

		entries, err = s.ByEmailHash(ctx, emailHash, oldest.Id+1, 100)
		if assert.NoError(err) {
			assert.Equal(1, len(entries))
		}

		entries, err = s.ByEmailHash(ctx, emailHash, -1, 1)
		if assert.NoError(err) && assert.Equal(1, len(entries)) {
			assert.Equal(chips.AuditSessionEnded, entries[0].Name)
		}
	}
}
