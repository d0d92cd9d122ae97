package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inventra/internal/core/id"
)

func TestNewBaseGeneratesID(t *testing.T) {
	b := NewBase()
	assert.False(t, id.IsNil(b.ID))

	// IDs are time-ordered; two in a row must differ.
	assert.NotEqual(t, b.ID, NewBase().ID)
}

func TestStampCreateIsExactlyOnce(t *testing.T) {
	b := NewBase()
	first := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	second := first.Add(time.Hour)

	b.StampCreate("alice", first)
	require.Equal(t, first, b.CreatedAt)
	require.Equal(t, "alice", b.CreatedBy)
	assert.Equal(t, first, b.UpdatedAt)

	// A second create stamp keeps the original create audit but still
	// refreshes the update audit.
	b.StampCreate("bob", second)
	assert.Equal(t, first, b.CreatedAt)
	assert.Equal(t, "alice", b.CreatedBy)
	assert.Equal(t, second, b.UpdatedAt)
	assert.Equal(t, "bob", b.UpdatedBy)
}

func TestStampUpdate(t *testing.T) {
	b := NewBase()
	at := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	b.StampUpdate("carol", at)

	assert.Equal(t, at, b.UpdatedAt)
	assert.Equal(t, "carol", b.UpdatedBy)
	assert.True(t, b.CreatedAt.IsZero())
}

func TestSoftDeleteLifecycle(t *testing.T) {
	b := NewBase()
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	deleted := created.Add(24 * time.Hour)
	restored := deleted.Add(time.Hour)

	b.StampCreate("alice", created)

	b.MarkDeleted("bob", deleted)
	assert.True(t, b.IsDeleted())
	require.NotNil(t, b.DeletedAt)
	require.NotNil(t, b.DeletedBy)
	assert.Equal(t, deleted, *b.DeletedAt)
	assert.Equal(t, "bob", *b.DeletedBy)
	assert.Equal(t, deleted, b.UpdatedAt)

	b.ClearDeleted("carol", restored)
	assert.False(t, b.IsDeleted())
	assert.Nil(t, b.DeletedAt)
	assert.Nil(t, b.DeletedBy)

	// Restore refreshes only the update audit.
	assert.Equal(t, created, b.CreatedAt)
	assert.Equal(t, "alice", b.CreatedBy)
	assert.Equal(t, restored, b.UpdatedAt)
	assert.Equal(t, "carol", b.UpdatedBy)
}
