package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/klauspost/compress/zstd"

	"inventra/internal/core/actor"
	"inventra/internal/core/id"
)

const changeHistoryTable = "change_history"

// ChangeHistory persists entity change records. Payloads are stored as
// zstd-compressed JSON; change rows are append-only and never deleted.
type ChangeHistory struct {
	txm     *TxManager
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewChangeHistory creates the change history service.
func NewChangeHistory(txm *TxManager) (*ChangeHistory, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &ChangeHistory{txm: txm, encoder: encoder, decoder: decoder}, nil
}

// LogChange appends one change record. Runs on the caller's transaction
// when one is open, so the history row commits or rolls back with the
// change it describes.
func (h *ChangeHistory) LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error {
	payload, err := json.Marshal(changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	compressed := h.encoder.EncodeAll(payload, nil)

	changedBy := actor.ID(ctx)

	sql, args, err := squirrel.StatementBuilder.
		PlaceholderFormat(squirrel.Dollar).
		Insert(changeHistoryTable).
		SetMap(map[string]any{
			"id":          id.New(),
			"entity_type": entityType,
			"entity_id":   entityID,
			"action":      action,
			"changed_by":  changedBy,
			"changed_at":  time.Now().UTC(),
			"payload":     compressed,
		}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := h.txm.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert change record: %w", err)
	}

	return nil
}

// ChangeRecord is one decoded history entry.
type ChangeRecord struct {
	ID         id.ID          `db:"id" json:"id"`
	EntityType string         `db:"entity_type" json:"entityType"`
	EntityID   id.ID          `db:"entity_id" json:"entityId"`
	Action     string         `db:"action" json:"action"`
	ChangedBy  string         `db:"changed_by" json:"changedBy"`
	ChangedAt  time.Time      `db:"changed_at" json:"changedAt"`
	Changes    map[string]any `db:"-" json:"changes"`
}

// History returns the change records for an entity, newest first.
func (h *ChangeHistory) History(ctx context.Context, entityType string, entityID id.ID, limit int) ([]ChangeRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	sql, args, err := squirrel.StatementBuilder.
		PlaceholderFormat(squirrel.Dollar).
		Select("id", "entity_type", "entity_id", "action", "changed_by", "changed_at", "payload").
		From(changeHistoryTable).
		Where(squirrel.Eq{"entity_type": entityType, "entity_id": entityID}).
		OrderBy("changed_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := h.txm.GetQuerier(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []ChangeRecord
	for rows.Next() {
		var rec ChangeRecord
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.EntityID, &rec.Action, &rec.ChangedBy, &rec.ChangedAt, &payload); err != nil {
			return nil, fmt.Errorf("scan change record: %w", err)
		}

		decoded, err := h.decoder.DecodeAll(payload, nil)
		if err != nil {
			return nil, fmt.Errorf("decompress payload: %w", err)
		}
		if err := json.Unmarshal(decoded, &rec.Changes); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	return records, nil
}

// Close releases compressor resources.
func (h *ChangeHistory) Close() {
	h.encoder.Close()
	h.decoder.Close()
}
