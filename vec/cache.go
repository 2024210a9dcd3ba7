package vec

import (
	"database/sql/driver"
	"sync"

	idxapi "github.com/viant/sparsevec/index"
	sqlite "modernc.org/sqlite"
)

// indexKey identifies one dataset of one vec table in one database file.
type indexKey struct {
	dbPath  string
	table   string
	dataset string
}

// indexCache shares built indexes across the connections of a process.
type indexCache struct {
	mu      sync.Mutex
	entries map[indexKey]*cacheEntry
}

var sharedCache = &indexCache{entries: make(map[indexKey]*cacheEntry)}

// cacheEntry holds the index of one key. While a build is in flight, built
// is open and closes when the builder releases the entry. gen advances on
// every invalidation so a build started before it is never cached.
type cacheEntry struct {
	mu    sync.Mutex
	idx   idxapi.Index
	gen   uint64
	built chan struct{}
}

func (c *indexCache) entry(key indexKey) *cacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &cacheEntry{}
		c.entries[key] = e
	}
	return e
}

// invalidate drops the index of every entry of table, limited to dataset
// unless it is empty, and returns how many entries matched.
func (c *indexCache) invalidate(table, dataset string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key, e := range c.entries {
		if key.table != table || (dataset != "" && key.dataset != dataset) {
			continue
		}
		e.drop()
		n++
	}
	return n
}

func (e *cacheEntry) load() idxapi.Index {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.idx
}

func (e *cacheEntry) generation() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen
}

// storeIfCurrent caches idx unless the entry was invalidated after gen was
// observed, and reports whether it did.
func (e *cacheEntry) storeIfCurrent(idx idxapi.Index, gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return false
	}
	e.idx = idx
	return true
}

func (e *cacheEntry) drop() {
	e.mu.Lock()
	e.idx = nil
	e.gen++
	e.mu.Unlock()
}

// claim reports the cached index, or a channel to wait on while another
// caller builds, or build=true when the caller now owns the build and must
// call release. gen is the generation the build is based on.
func (e *cacheEntry) claim() (idx idxapi.Index, wait <-chan struct{}, gen uint64, build bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch {
	case e.idx != nil:
		return e.idx, nil, e.gen, false
	case e.built != nil:
		return nil, e.built, e.gen, false
	}
	e.built = make(chan struct{})
	return nil, nil, e.gen, true
}

func (e *cacheEntry) release() {
	e.mu.Lock()
	close(e.built)
	e.built = nil
	e.mu.Unlock()
}

// InvalidateCache clears cached indices for a given shadow/dataset across
// active connections and returns the number of entries cleared. An empty
// dataset clears every dataset of the table.
func InvalidateCache(shadow, dataset string) int {
	table := tableNameFromShadow(shadow)
	if table == "" {
		table = shadow
	}
	return sharedCache.invalidate(table, dataset)
}

// invalidateFunc implements SQL scalar vec_invalidate(shadow TEXT, dataset TEXT) -> INT.
// Arguments that are not text clear nothing.
func invalidateFunc(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return int64(0), nil
	}
	shadow, err := asString(args[0])
	if err != nil {
		return int64(0), nil
	}
	dataset, err := asString(args[1])
	if err != nil {
		return int64(0), nil
	}
	return int64(InvalidateCache(shadow, dataset)), nil
}
