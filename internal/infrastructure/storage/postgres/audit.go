package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	"explostock/internal/core/clock"
	appctx "explostock/internal/core/context"
	"explostock/internal/core/entity"
	"explostock/internal/core/id"
	"explostock/internal/domain"
)

// AuditAction represents the type of audited operation.
type AuditAction string

const (
	AuditActionCreate AuditAction = "create"
	AuditActionUpdate AuditAction = "update"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the snapshot size above which changes are
// stored zstd-compressed.
const DefaultCompressThreshold = 10 * 1024

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID           `db:"id"`
	EntityType        string          `db:"entity_type"`
	EntityID          id.ID           `db:"entity_id"`
	EntityVersion     int             `db:"entity_version"`
	Action            AuditAction     `db:"action"`
	UserID            *string         `db:"user_id"`
	Changes           json.RawMessage `db:"changes"`
	ChangesCompressed []byte          `db:"changes_compressed"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo"`
	TraceID           *string         `db:"trace_id"`
	CreatedAt         time.Time       `db:"created_at"`
}

// AuditService writes entity snapshots to sys_audit in the caller's
// transaction.
type AuditService struct {
	txManager         *TxManager
	clock             clock.Clock
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

// NewAuditService creates a new audit service.
func NewAuditService(txManager *TxManager, clk clock.Clock) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	if clk == nil {
		clk = clock.System()
	}

	return &AuditService{
		txManager:         txManager,
		clock:             clk,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: DefaultCompressThreshold,
	}, nil
}

// Close releases the zstd decoder goroutines.
func (s *AuditService) Close() {
	s.decoder.Close()
}

// Log records an audit entry.
func (s *AuditService) Log(ctx context.Context, entry AuditEntry) error {
	if entry.UserID == nil {
		if userID := appctx.GetUserID(ctx); userID != "" {
			entry.UserID = &userID
		}
	}
	if entry.TraceID == nil {
		if t := appctx.GetTrace(ctx); t != nil && t.TraceID != "" {
			entry.TraceID = &t.TraceID
		}
	}
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.clock.Now().UTC()
	}

	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) > s.compressThreshold {
		entry.ChangesCompressed = s.encoder.EncodeAll(entry.Changes, nil)
		entry.Changes = nil
		entry.CompressionAlgo = CompressionZstd
	}

	const sql = `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, entity_version, action, user_id,
			changes, changes_compressed, compression_algo, trace_id,
			created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.EntityVersion, entry.Action,
		entry.UserID, entry.Changes, entry.ChangesCompressed, entry.CompressionAlgo,
		entry.TraceID, entry.CreatedAt,
	)
	if err != nil {
		return MapError("insert audit entry", entry.EntityType, err)
	}
	return nil
}

// LogSnapshot records the full db-tagged state of v.
func (s *AuditService) LogSnapshot(ctx context.Context, entityType string, v entity.Versioned, action AuditAction) error {
	changes, err := json.Marshal(StructToMap(v))
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.Log(ctx, AuditEntry{
		EntityType:    entityType,
		EntityID:      v.GetID(),
		EntityVersion: v.GetVersion(),
		Action:        action,
		Changes:       changes,
	})
}

// GetEntityHistory retrieves audit history for an entity, newest first.
func (s *AuditService) GetEntityHistory(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	const sql = `
		SELECT id, entity_type, entity_id, entity_version, action, user_id,
		       changes, changes_compressed, compression_algo, trace_id,
		       created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC, entity_version DESC
		LIMIT $3
	`

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, s.txManager.GetQuerier(ctx), &entries, sql, entityType, entityID, limit); err != nil {
		return nil, MapError("query audit history", entityType, err)
	}

	for i := range entries {
		if err := s.decompress(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (s *AuditService) decompress(e *AuditEntry) error {
	if e.CompressionAlgo != CompressionZstd || len(e.ChangesCompressed) == 0 {
		return nil
	}
	decompressed, err := s.decoder.DecodeAll(e.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	e.Changes = decompressed
	e.ChangesCompressed = nil
	return nil
}

// RegisterAuditHooks snapshots every created and updated entity of one type.
// The hooks run inside the command's transaction, so a failed audit write
// rolls the command back.
func RegisterAuditHooks[T entity.Versioned](s *AuditService, entityType string, hooks *domain.HookRegistry[T]) {
	hooks.OnAfterCreate(func(ctx context.Context, v T) error {
		return s.LogSnapshot(ctx, entityType, v, AuditActionCreate)
	})
	hooks.OnAfterUpdate(func(ctx context.Context, v T) error {
		return s.LogSnapshot(ctx, entityType, v, AuditActionUpdate)
	})
}

// Diff calculates the difference between old and new entity states.
func Diff(oldState, newState map[string]any) map[string]any {
	changes := make(map[string]any)

	for key, newVal := range newState {
		oldVal, exists := oldState[key]
		if !exists {
			changes[key] = map[string]any{"old": nil, "new": newVal}
		} else if !reflect.DeepEqual(oldVal, newVal) {
			changes[key] = map[string]any{"old": oldVal, "new": newVal}
		}
	}

	for key, oldVal := range oldState {
		if _, exists := newState[key]; !exists {
			changes[key] = map[string]any{"old": oldVal, "new": nil}
		}
	}

	return changes
}
