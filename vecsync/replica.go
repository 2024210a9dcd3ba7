package vecsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/viant/sparsevec/vec"
)

// StateTable stores the last applied SCN per dataset/shadow pair on replicas.
const StateTable = "vec_sync_state"

// StateTableDDL returns the DDL for vec_sync_state.
func StateTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS ` + StateTable + ` (
    dataset_id   TEXT NOT NULL,
    shadow_table TEXT NOT NULL,
    last_scn     INTEGER NOT NULL,
    updated_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY(dataset_id, shadow_table)
);`
}

// Syncer replays upstream change-log entries into a replica shadow table.
type Syncer struct {
	upstream vec.Queryer
	replica  *sql.DB
	cfg      Config
	logger   *slog.Logger
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithLogger sets the logger used for batch events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Syncer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewSyncer validates cfg and returns a Syncer. The replica must have the
// vec functions registered (vec.Register) since its shadow carries the
// invalidation triggers.
func NewSyncer(upstream vec.Queryer, replica *sql.DB, cfg Config, opts ...Option) (*Syncer, error) {
	switch {
	case upstream == nil || replica == nil:
		return nil, errors.New("vecsync: upstream and replica are required")
	case strings.TrimSpace(cfg.DatasetID) == "":
		return nil, errors.New("vecsync: dataset id is required")
	case strings.TrimSpace(cfg.ShadowTable) == "":
		return nil, errors.New("vecsync: shadow table is required")
	}
	s := &Syncer{upstream: upstream, replica: replica, cfg: cfg, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the replica sync state; LastSCN is 0 before the first batch.
func (s *Syncer) State(ctx context.Context) (SyncState, error) {
	st := SyncState{DatasetID: s.cfg.DatasetID, ShadowTable: s.cfg.ShadowTable}
	if _, err := s.replica.ExecContext(ctx, StateTableDDL()); err != nil {
		return st, fmt.Errorf("vecsync: %w", err)
	}
	var updated sql.NullString
	err := s.replica.QueryRowContext(ctx, `SELECT last_scn, updated_at FROM `+StateTable+` WHERE dataset_id = ? AND shadow_table = ?`,
		s.cfg.DatasetID, s.cfg.ShadowTable).Scan(&st.LastSCN, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("vecsync: %w", err)
	}
	st.UpdatedAt = parseTimestamp(updated.String)
	return st, nil
}

// Sync applies batches until the replica has caught up with the upstream log
// and returns the number of entries applied.
func (s *Syncer) Sync(ctx context.Context) (int, error) {
	if err := vec.EnsureShadow(ctx, s.replica, s.cfg.replicaTable()); err != nil {
		return 0, fmt.Errorf("vecsync: %w", err)
	}
	st, err := s.State(ctx)
	if err != nil {
		return 0, err
	}
	total := 0
	for {
		entries, err := Changes(ctx, s.upstream, s.cfg.DatasetID, s.cfg.ShadowTable, st.LastSCN, s.cfg.batchSize())
		if err != nil {
			return total, err
		}
		if len(entries) == 0 {
			return total, nil
		}
		if st.LastSCN, err = s.Apply(ctx, entries); err != nil {
			return total, err
		}
		total += len(entries)
		s.logger.Debug("vecsync batch applied", "dataset", s.cfg.DatasetID, "shadow", s.cfg.ShadowTable, "entries", len(entries), "scn", st.LastSCN)
		if len(entries) < s.cfg.batchSize() {
			return total, nil
		}
	}
}

// Apply replays entries into the replica shadow in one transaction and
// advances vec_sync_state to the last SCN. Entries for another dataset or
// with an unknown op are rejected.
func (s *Syncer) Apply(ctx context.Context, entries []LogEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, errors.New("vecsync: no entries to apply")
	}
	tx, err := s.replica.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("vecsync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	if _, err := tx.ExecContext(ctx, StateTableDDL()); err != nil {
		return 0, fmt.Errorf("vecsync: %w", err)
	}
	table := s.cfg.replicaTable()
	upsert := fmt.Sprintf(`INSERT INTO %s(dataset_id, id, content, meta, embedding) VALUES(?, ?, ?, ?, ?)
ON CONFLICT(dataset_id, id) DO UPDATE SET content = excluded.content, meta = excluded.meta, embedding = excluded.embedding`, table)
	del := fmt.Sprintf(`DELETE FROM %s WHERE dataset_id = ? AND id = ?`, table)
	var last int64
	for i := range entries {
		e := &entries[i]
		if e.DatasetID != s.cfg.DatasetID {
			return 0, fmt.Errorf("vecsync: scn %d: dataset %q, expected %q", e.SCN, e.DatasetID, s.cfg.DatasetID)
		}
		switch e.Op {
		case OpInsert, OpUpdate:
			doc, blob, err := e.Document()
			if err != nil {
				return 0, err
			}
			if _, err := tx.ExecContext(ctx, upsert, doc.DatasetID, doc.ID, doc.Content, doc.Meta, blob); err != nil {
				return 0, fmt.Errorf("vecsync: scn %d: %w", e.SCN, err)
			}
		case OpDelete:
			if _, err := tx.ExecContext(ctx, del, e.DatasetID, e.DocumentID); err != nil {
				return 0, fmt.Errorf("vecsync: scn %d: %w", e.SCN, err)
			}
		default:
			return 0, fmt.Errorf("vecsync: scn %d: unknown op %q", e.SCN, e.Op)
		}
		last = e.SCN
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO `+StateTable+`(dataset_id, shadow_table, last_scn, updated_at) VALUES(?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT(dataset_id, shadow_table) DO UPDATE SET last_scn = excluded.last_scn, updated_at = excluded.updated_at`,
		s.cfg.DatasetID, s.cfg.ShadowTable, last); err != nil {
		return 0, fmt.Errorf("vecsync: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("vecsync: %w", err)
	}
	return last, nil
}

// Run calls Sync every interval until ctx is done. Sync errors are logged and
// retried on the next tick.
func (s *Syncer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if _, err := s.Sync(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Warn("vecsync failed", "dataset", s.cfg.DatasetID, "shadow", s.cfg.ShadowTable, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
