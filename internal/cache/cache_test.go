package cache

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type page struct {
	SHA   string `json:"sha"`
	Title string `json:"title"`
}

func openTestCache(t *testing.T, ttl time.Duration) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestPutGetRoundtrip(t *testing.T) {
	c := openTestCache(t, time.Hour)

	require.NoError(t, c.Put("commits/abc", page{SHA: "abc", Title: "fix"}))

	var got page
	ok, err := c.Get("commits/abc", &got)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, page{SHA: "abc", Title: "fix"}, got)
}

func TestGetMissingKey(t *testing.T) {
	c := openTestCache(t, time.Hour)

	var got page
	ok, err := c.Get("nope", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExpiredEntryIsMiss(t *testing.T) {
	c := openTestCache(t, time.Nanosecond)

	require.NoError(t, c.Put("commits/abc", page{SHA: "abc"}))
	time.Sleep(time.Millisecond)

	var got page
	ok, err := c.Get("commits/abc", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPurge(t *testing.T) {
	c := openTestCache(t, time.Hour)

	require.NoError(t, c.Put("a", page{SHA: "a"}))
	require.NoError(t, c.Purge())

	var got page
	ok, err := c.Get("a", &got)
	require.NoError(t, err)
	assert.False(t, ok)
}
