// Package cache keeps prepared statements keyed by their SQL text.
//
// A Query renders the same SQL for the same chain of builder calls, so the
// rendered text identifies a statement. Entries are evicted least recently
// used first. A statement handed out by GetOrPrepare is leased: eviction
// only closes it once every lease holder has released it.
package cache

import (
	"container/list"
	"context"
	"database/sql"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// DefaultStmtCacheCapacity is the capacity used when none (or a non-positive one) is given.
const DefaultStmtCacheCapacity = 1000

// PrepareFunc prepares sqlText on some connection pool or transaction.
type PrepareFunc func(ctx context.Context, sqlText string) (*sql.Stmt, error)

// Release ends a lease on a statement. Calling it more than once is harmless.
type Release func()

// StmtCache is safe for concurrent use.
type StmtCache struct {
	mu    sync.Mutex
	limit int
	index map[string]*list.Element
	order *list.List // front is most recently used

	flights singleflight.Group

	hits, misses, evictions atomic.Uint64
}

// slot fields other than sqlText are guarded by StmtCache.mu.
type slot struct {
	sqlText string
	stmt    *sql.Stmt
	leases  int
	retired bool
}

// NewStmtCache returns a cache holding up to DefaultStmtCacheCapacity statements.
func NewStmtCache() *StmtCache {
	return NewStmtCacheWithCapacity(DefaultStmtCacheCapacity)
}

// NewStmtCacheWithCapacity returns a cache holding up to capacity statements.
func NewStmtCacheWithCapacity(capacity int) *StmtCache {
	if capacity < 1 {
		capacity = DefaultStmtCacheCapacity
	}
	return &StmtCache{
		limit: capacity,
		index: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Get returns the statement for sqlText and counts a hit or a miss.
// The statement is not leased and may be closed by a later eviction;
// use GetOrPrepare to run it.
func (c *StmtCache) Get(sqlText string) (*sql.Stmt, bool) {
	c.mu.Lock()
	s := c.touch(sqlText)
	c.mu.Unlock()

	if s == nil {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return s.stmt, true
}

// GetOrPrepare leases the cached statement for sqlText. On a miss it calls
// prepare once, even when several goroutines miss the same text at the same
// time, and stores the result. Prepare errors are not cached.
//
// The caller must call the returned Release when done with the statement.
// If the fresh entry is evicted before it can be leased, a private statement
// is prepared instead and Release closes it.
func (c *StmtCache) GetOrPrepare(ctx context.Context, sqlText string, prepare PrepareFunc) (*sql.Stmt, Release, error) {
	if s := c.lease(sqlText); s != nil {
		c.hits.Add(1)
		return s.stmt, c.releaser(s), nil
	}
	c.misses.Add(1)

	_, err, _ := c.flights.Do(sqlText, func() (interface{}, error) {
		c.mu.Lock()
		_, ok := c.index[sqlText]
		c.mu.Unlock()
		if ok {
			return nil, nil
		}

		stmt, err := prepare(ctx, sqlText)
		if err != nil {
			return nil, err
		}
		c.Set(sqlText, stmt)
		return nil, nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s := c.lease(sqlText); s != nil {
		return s.stmt, c.releaser(s), nil
	}
	stmt, err := prepare(ctx, sqlText)
	if err != nil {
		return nil, nil, err
	}
	var once sync.Once
	return stmt, func() { once.Do(func() { _ = stmt.Close() }) }, nil
}

// Set stores stmt under sqlText. A different statement already stored under
// the same text is retired.
func (c *StmtCache) Set(sqlText string, stmt *sql.Stmt) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.index[sqlText]; ok {
		if el.Value.(*slot).stmt == stmt {
			c.order.MoveToFront(el)
			return
		}
		c.remove(el)
	}

	for c.order.Len() >= c.limit {
		c.remove(c.order.Back())
		c.evictions.Add(1)
	}
	c.index[sqlText] = c.order.PushFront(&slot{sqlText: sqlText, stmt: stmt})
}

// Clear retires every statement and empties the cache. Counters are kept.
func (c *StmtCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for c.order.Len() > 0 {
		c.remove(c.order.Back())
	}
}

// touch marks sqlText as most recently used. c.mu must be held.
func (c *StmtCache) touch(sqlText string) *slot {
	el, ok := c.index[sqlText]
	if !ok {
		return nil
	}
	c.order.MoveToFront(el)
	return el.Value.(*slot)
}

func (c *StmtCache) lease(sqlText string) *slot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.touch(sqlText)
	if s != nil {
		s.leases++
	}
	return s
}

func (c *StmtCache) releaser(s *slot) Release {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			s.leases--
			if s.retired && s.leases == 0 {
				_ = s.stmt.Close()
			}
		})
	}
}

// remove drops el from the cache and closes its statement unless it is
// leased, in which case the last release closes it. c.mu must be held.
func (c *StmtCache) remove(el *list.Element) {
	s := c.order.Remove(el).(*slot)
	delete(c.index, s.sqlText)
	s.retired = true
	if s.leases == 0 {
		_ = s.stmt.Close()
	}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Size      int
	Capacity  int
	Hits      uint64
	Misses    uint64
	Evictions uint64
	HitRate   float64
}

// Stats returns the current counters. HitRate is 0 until the first lookup.
func (c *StmtCache) Stats() Stats {
	c.mu.Lock()
	size := c.order.Len()
	c.mu.Unlock()

	s := Stats{
		Size:      size,
		Capacity:  c.limit,
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
	}
	if lookups := s.Hits + s.Misses; lookups > 0 {
		s.HitRate = float64(s.Hits) / float64(lookups)
	}
	return s
}
