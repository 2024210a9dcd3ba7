package vecsync

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/sparsevec/vector"
)

// Operations recorded in vec_shadow_log.
const (
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

// LogEntry mirrors a single row in vec_shadow_log on the upstream database.
// It conveys dataset-scoped document changes to downstream replicas.
type LogEntry struct {
	DatasetID   string
	ShadowTable string
	SCN         int64
	Op          string
	DocumentID  string
	Payload     []byte
	CreatedAt   time.Time
}

// Payload is the JSON document captured by the change-log triggers. The
// embedding is the hex-encoded vector.EncodeEmbedding blob, empty for NULL.
type Payload struct {
	DatasetID string  `json:"dataset_id"`
	ID        string  `json:"id"`
	Content   *string `json:"content"`
	Meta      *string `json:"meta"`
	Embedding string  `json:"embedding"`
}

// Document decodes the entry payload and returns it with the raw embedding
// blob, which is validated but not decoded further.
func (e *LogEntry) Document() (*Payload, []byte, error) {
	var p Payload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, nil, fmt.Errorf("vecsync: scn %d: %w", e.SCN, err)
	}
	if p.Embedding == "" {
		return &p, nil, nil
	}
	blob, err := hex.DecodeString(p.Embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("vecsync: scn %d: embedding: %w", e.SCN, err)
	}
	if _, err := vector.DecodeEmbedding(blob); err != nil {
		return nil, nil, fmt.Errorf("vecsync: scn %d: %w", e.SCN, err)
	}
	return &p, blob, nil
}

// SyncState describes the latest SCN applied locally for a given dataset/shadow pair.
// It corresponds to rows in vec_sync_state on downstream SQLite replicas.
type SyncState struct {
	DatasetID   string
	ShadowTable string
	LastSCN     int64
	UpdatedAt   time.Time
}

// Config captures the settings needed to perform SCN-based replication from an
// upstream database into a local SQLite shadow table.
type Config struct {
	// DatasetID identifies the dataset slice being synchronized.
	DatasetID string

	// ShadowTable is the fully-qualified upstream shadow table name (e.g., "main._vec_docs").
	ShadowTable string

	// ReplicaTable is the replica shadow table; defaults to ShadowTable.
	ReplicaTable string

	// BatchSize controls how many log entries to fetch/apply per sync iteration.
	BatchSize int
}

const defaultBatchSize = 256

func (c Config) replicaTable() string {
	if c.ReplicaTable != "" {
		return c.ReplicaTable
	}
	return c.ShadowTable
}

func (c Config) batchSize() int {
	if c.BatchSize > 0 {
		return c.BatchSize
	}
	return defaultBatchSize
}
