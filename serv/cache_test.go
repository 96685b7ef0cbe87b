package serv

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatementCache_PutGet(t *testing.T) {
	c := NewStatementCache(2)
	c.Put("k1", CachedStatement{SQL: "select 1", ParamCount: 0})

	got, ok := c.Get("k1")
	require.True(t, ok)
	require.Equal(t, "select 1", got.SQL)
}

func TestStatementCache_EvictsLRU(t *testing.T) {
	c := NewStatementCache(1)
	c.Put("k1", CachedStatement{SQL: "select 1"})
	c.Put("k2", CachedStatement{SQL: "select 2"})

	_, ok := c.Get("k1")
	require.False(t, ok)

	got, ok := c.Get("k2")
	require.True(t, ok)
	require.Equal(t, "select 2", got.SQL)
}

func TestStatementCache_Purge(t *testing.T) {
	c := NewStatementCache(4)
	c.Put("k1", CachedStatement{SQL: "select 1"})
	c.Purge()

	_, ok := c.Get("k1")
	require.False(t, ok)
}
