package serv

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

// StatementCache memoizes compiled SQL text keyed on the normalized
// request shape (method + path + sorted query keys + role + schema),
// the same prepare-once/execute-many intent the teacher's resolver
// cache serves for compiled GraphQL queries, adapted to the one
// compiled statement per request shape this compiler produces instead
// of a parsed GraphQL AST.
type StatementCache struct {
	entries *lru.Cache[string, CachedStatement]
}

// CachedStatement is a previously compiled statement's SQL text and the
// number of positional params (not their values) it expects — callers still run
// the URL Parser per-request to pull the actual bound values, so
// caching never risks leaking one request's filter values into
// another's execution.
type CachedStatement struct {
	SQL        string
	ParamCount int
}

// NewStatementCache builds a bounded LRU cache holding up to size
// compiled statements.
func NewStatementCache(size int) *StatementCache {
	c, _ := lru.New[string, CachedStatement](size)
	return &StatementCache{entries: c}
}

// Get returns the cached statement for key, if present.
func (c *StatementCache) Get(key string) (CachedStatement, bool) {
	return c.entries.Get(key)
}

// Put stores stmt under key, evicting the least-recently-used entry
// once size is exceeded.
func (c *StatementCache) Put(key string, stmt CachedStatement) {
	c.entries.Add(key, stmt)
}

// Purge drops every cached entry — called after a catalog reload since
// a schema change can alter how a previously-cached shape compiles.
func (c *StatementCache) Purge() {
	c.entries.Purge()
}
