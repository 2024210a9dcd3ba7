package vecsync

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/viant/sparsevec/vec"
)

const (
	// DefaultLogTable is the upstream change-log table that captures row-level SCN events.
	DefaultLogTable = "vec_shadow_log"

	// DefaultSeqTable stores the next SCN per dataset on the upstream database.
	DefaultSeqTable = "vec_dataset_scn"
)

// LogTableDDL returns the DDL for vec_shadow_log, which upstream databases populate
// via triggers whenever the shadow table changes.
func LogTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS ` + DefaultLogTable + ` (
    dataset_id   TEXT NOT NULL,
    shadow_table TEXT NOT NULL,
    scn          INTEGER NOT NULL,
    op           TEXT NOT NULL,
    document_id  TEXT NOT NULL,
    payload      BLOB NOT NULL,
    created_at   TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY(dataset_id, shadow_table, scn)
);`
}

// SeqTableDDL returns the DDL tracking the last issued SCN per dataset.
func SeqTableDDL() string {
	return `CREATE TABLE IF NOT EXISTS ` + DefaultSeqTable + ` (
    dataset_id TEXT PRIMARY KEY,
    next_scn   INTEGER NOT NULL
);`
}

// ShadowLogTriggers returns the SQLite triggers that append every insert,
// update and delete on shadowTable to vec_shadow_log. The payload is a JSON
// object with a hex-encoded embedding. An update that changes the row key is
// logged as a delete of the old key followed by an insert of the new one.
func ShadowLogTriggers(shadowTable string) []string {
	base := sanitizeIdentifier(shadowTable)
	lit := "'" + strings.ReplaceAll(shadowTable, "'", "''") + "'"
	payload := func(alias string) string {
		return fmt.Sprintf(`json_object(
        'dataset_id', %[1]s.dataset_id,
        'id', %[1]s.id,
        'content', %[1]s.content,
        'meta', %[1]s.meta,
        'embedding', lower(hex(%[1]s.embedding))
    )`, alias)
	}
	logRow := func(alias, op string) string {
		return fmt.Sprintf(`INSERT INTO %[1]s(dataset_id, next_scn)
    VALUES (%[2]s.dataset_id, 1)
    ON CONFLICT(dataset_id) DO UPDATE SET next_scn = next_scn + 1;
    INSERT INTO %[3]s(dataset_id, shadow_table, scn, op, document_id, payload)
    VALUES (
        %[2]s.dataset_id,
        %[4]s,
        (SELECT next_scn FROM %[1]s WHERE dataset_id = %[2]s.dataset_id),
        '%[5]s',
        %[2]s.id,
        %[6]s
    );`, DefaultSeqTable, alias, DefaultLogTable, lit, op, payload(alias))
	}
	sameKey := `OLD.dataset_id IS NEW.dataset_id AND OLD.id IS NEW.id`
	return []string{
		fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s_ai AFTER INSERT ON %s\nBEGIN\n    %s\nEND;",
			base, shadowTable, logRow("NEW", OpInsert)),
		fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s_au AFTER UPDATE ON %s WHEN %s\nBEGIN\n    %s\nEND;",
			base, shadowTable, sameKey, logRow("NEW", OpUpdate)),
		fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s_ak AFTER UPDATE ON %s WHEN NOT (%s)\nBEGIN\n    %s\n    %s\nEND;",
			base, shadowTable, sameKey, logRow("OLD", OpDelete), logRow("NEW", OpInsert)),
		fmt.Sprintf("CREATE TRIGGER IF NOT EXISTS %s_ad AFTER DELETE ON %s\nBEGIN\n    %s\nEND;",
			base, shadowTable, logRow("OLD", OpDelete)),
	}
}

// EnableChangeLog creates the shadow table (through vec.EnsureShadow), the
// log and sequence tables, and the change-log triggers on the upstream
// database. Rows already present in the shadow are not back-filled.
func EnableChangeLog(ctx context.Context, db vec.Execer, shadowTable string) error {
	if strings.TrimSpace(shadowTable) == "" {
		return fmt.Errorf("vecsync: shadow table is required")
	}
	if err := vec.EnsureShadow(ctx, db, shadowTable); err != nil {
		return fmt.Errorf("vecsync: %w", err)
	}
	stmts := append([]string{LogTableDDL(), SeqTableDDL()}, ShadowLogTriggers(shadowTable)...)
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("vecsync: %w", err)
		}
	}
	return nil
}

// Changes returns up to limit log entries for dataset/shadowTable with an SCN
// greater than afterSCN, in SCN order.
func Changes(ctx context.Context, db vec.Queryer, datasetID, shadowTable string, afterSCN int64, limit int) ([]LogEntry, error) {
	if limit <= 0 {
		limit = defaultBatchSize
	}
	rows, err := db.QueryContext(ctx, `SELECT dataset_id, shadow_table, scn, op, document_id, payload, created_at
FROM `+DefaultLogTable+`
WHERE dataset_id = ? AND shadow_table = ? AND scn > ?
ORDER BY scn
LIMIT ?`, datasetID, shadowTable, afterSCN, limit)
	if err != nil {
		return nil, fmt.Errorf("vecsync: %w", err)
	}
	defer rows.Close()
	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var created sql.NullString
		if err := rows.Scan(&e.DatasetID, &e.ShadowTable, &e.SCN, &e.Op, &e.DocumentID, &e.Payload, &created); err != nil {
			return nil, fmt.Errorf("vecsync: %w", err)
		}
		e.CreatedAt = parseTimestamp(created.String)
		out = append(out, e)
	}
	return out, rows.Err()
}

// parseTimestamp accepts both the SQLite CURRENT_TIMESTAMP text form and the
// RFC 3339 form the driver produces for TIMESTAMP columns.
func parseTimestamp(s string) time.Time {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999-07:00"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// sanitizeIdentifier converts a table name like "main._vec_docs" into a
// trigger-safe base name like "main__vec_docs_vec_log".
func sanitizeIdentifier(name string) string {
	b := strings.Builder{}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String() + "_vec_log"
}
