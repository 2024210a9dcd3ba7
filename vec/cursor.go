package vec

import (
	"context"
	"fmt"

	"github.com/viant/sparsevec/vector"
	"modernc.org/sqlite/vtab"
)

type row struct {
	rowid   int64
	dataset string
	id      string
	score   float64
}

// Cursor scans results from a vec table.
type Cursor struct {
	table *Table
	rows  []row
	pos   int
}

// Filter computes the result set based on idxNum/vals.
func (c *Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	_ = idxStr
	c.rows, c.pos = nil, 0
	if c.table == nil || c.table.db == nil {
		return nil
	}
	ctx := context.Background()
	if len(vals) == 0 || vals[0] == nil {
		return fmt.Errorf("vec: dataset_id argument is required")
	}
	dataset, err := asString(vals[0])
	if err != nil {
		return err
	}

	switch idxNum {
	case idxDatasetScan:
		if err := c.table.ensureShadow(ctx); err != nil {
			return err
		}
		q := fmt.Sprintf("SELECT rowid, id FROM %s WHERE dataset_id = ? ORDER BY rowid", c.table.shadow)
		rows, err := c.table.db.QueryContext(ctx, q, dataset)
		if err != nil {
			return err
		}
		defer rows.Close()
		var out []row
		for rows.Next() {
			r := row{dataset: dataset}
			if err := rows.Scan(&r.rowid, &r.id); err != nil {
				return err
			}
			out = append(out, r)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		c.rows = out
		return nil
	case idxDatasetMatch, idxDatasetMatchScoreGE, idxDatasetMatchScoreGT:
		if len(vals) < 2 || vals[1] == nil {
			return fmt.Errorf("vec: dataset_id and MATCH arguments are required")
		}
		query, err := decodeMatchArg(vals[1])
		if err != nil {
			return err
		}
		keep := func(float64) bool { return true }
		if idxNum != idxDatasetMatch {
			if len(vals) < 3 {
				return fmt.Errorf("vec: missing match_score constraint")
			}
			bound, err := asFloat(vals[2])
			if err != nil {
				return err
			}
			if idxNum == idxDatasetMatchScoreGT {
				keep = func(s float64) bool { return s > bound }
			} else {
				keep = func(s float64) bool { return s >= bound }
			}
		}

		idx, err := c.table.ensureIndex(ctx, dataset)
		if err != nil {
			return err
		}
		ids, scores, err := idx.Query(query, 0)
		if err != nil {
			return fmt.Errorf("vec: %w", err)
		}
		rowids, err := c.table.rowids(ctx, dataset)
		if err != nil {
			return err
		}
		out := make([]row, 0, len(ids))
		for i, id := range ids {
			if !keep(scores[i]) {
				continue
			}
			rid, ok := rowids[id]
			if !ok {
				continue
			}
			out = append(out, row{rowid: rid, dataset: dataset, id: id, score: scores[i]})
		}
		c.rows = out
		return nil
	default:
		return fmt.Errorf("vec: unsupported query plan")
	}
}

// decodeMatchArg accepts an encoded embedding BLOB or any text form
// understood by vector.ParseText.
func decodeMatchArg(v vtab.Value) (*vector.SparseVector, error) {
	switch val := v.(type) {
	case []byte:
		return vector.DecodeEmbedding(val)
	case string:
		q, err := vector.ParseText(val)
		if err != nil {
			return nil, fmt.Errorf("vec: MATCH: %w", err)
		}
		return q, nil
	default:
		return nil, fmt.Errorf("vec: expected MATCH arg as BLOB or string, got %T", v)
	}
}

// Next advances the cursor.
func (c *Cursor) Next() error {
	if c.pos < len(c.rows) {
		c.pos++
	}
	return nil
}

// Eof reports end-of-rows.
func (c *Cursor) Eof() bool { return c.pos >= len(c.rows) }

// Column returns the value of a column in the current row.
func (c *Cursor) Column(col int) (vtab.Value, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return nil, fmt.Errorf("vec: Column out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	switch col {
	case 0:
		return c.rows[c.pos].dataset, nil
	case 1:
		return c.rows[c.pos].id, nil
	case 2:
		return c.rows[c.pos].score, nil
	}
	return nil, fmt.Errorf("vec: unsupported column %d", col)
}

// Rowid returns the current rowid.
func (c *Cursor) Rowid() (int64, error) {
	if c.pos < 0 || c.pos >= len(c.rows) {
		return 0, fmt.Errorf("vec: Rowid out of range (pos=%d,len=%d)", c.pos, len(c.rows))
	}
	return c.rows[c.pos].rowid, nil
}

// Close releases resources.
func (c *Cursor) Close() error { c.rows = nil; c.pos = 0; return nil }
