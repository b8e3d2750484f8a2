package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/p-blackswan/repodesk/internal/models"
)

func result(fileID, value string) models.ResultData {
	return models.ResultData{
		ResID:   "res-" + fileID,
		FileID:  fileID,
		Content: map[string][]models.ResultItem{"summary": {{Key: "total", Value: value}}},
	}
}

func TestResultCache_PutGet(t *testing.T) {
	c := NewResultCache(2)
	assert.False(t, c.Put("F1", result("F1", "10")))

	got, ok := c.Get("F1")
	require.True(t, ok)
	assert.Equal(t, result("F1", "10"), got)

	_, ok = c.Get("F9")
	assert.False(t, ok)
}

func TestResultCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewResultCache(2)
	c.Put("F1", result("F1", "1"))
	c.Put("F2", result("F2", "2"))

	_, _ = c.Get("F1") // F2 is now the oldest
	assert.True(t, c.Put("F3", result("F3", "3")))

	_, ok := c.Get("F2")
	assert.False(t, ok)
	_, ok = c.Get("F1")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestResultCache_UpdateDoesNotEvict(t *testing.T) {
	c := NewResultCache(1)
	c.Put("F1", result("F1", "1"))
	assert.False(t, c.Put("F1", result("F1", "2")))

	got, _ := c.Get("F1")
	assert.Equal(t, "2", got.Content["summary"][0].Value)
}

func TestResultCache_ReturnsCopies(t *testing.T) {
	c := NewResultCache(4)
	in := result("F1", "1")
	c.Put("F1", in)
	in.Content["summary"][0].Value = "mutated"

	got, _ := c.Get("F1")
	got.Content["summary"][0].Value = "mutated again"

	again, _ := c.Get("F1")
	assert.Equal(t, "1", again.Content["summary"][0].Value)
}

func TestResultCache_InvalidateAndClear(t *testing.T) {
	c := NewResultCache(0)
	c.Put("F1", result("F1", "1"))
	c.Put("F2", result("F2", "2"))

	assert.True(t, c.Invalidate("F1"))
	assert.False(t, c.Invalidate("F1"))
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Equal(t, 0, c.Len())
	_, ok := c.Get("F2")
	assert.False(t, ok)
}
