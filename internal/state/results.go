package state

import (
	"container/list"
	"sync"

	"github.com/p-blackswan/repodesk/internal/models"
)

// DefaultResultCapacity bounds how many extracted results a tab keeps.
const DefaultResultCapacity = 32

type resultEntry struct {
	fileID string
	data   models.ResultData
}

// ResultCache keeps recently viewed extraction results in memory, evicting
// the least recently used. It is not persisted: a reload refetches.
type ResultCache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List // front is most recently used
	items    map[string]*list.Element
}

// NewResultCache returns a cache holding at most capacity results. A
// capacity below 1 selects DefaultResultCapacity.
func NewResultCache(capacity int) *ResultCache {
	if capacity < 1 {
		capacity = DefaultResultCapacity
	}
	return &ResultCache{
		capacity: capacity,
		order:    list.New(),
		items:    make(map[string]*list.Element, capacity),
	}
}

// Get returns a copy of the cached result for fileID.
func (c *ResultCache) Get(fileID string) (models.ResultData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[fileID]
	if !ok {
		return models.ResultData{}, false
	}
	c.order.MoveToFront(el)
	return cloneResultData(el.Value.(*resultEntry).data), true
}

// Put stores data for fileID and reports whether another entry was evicted.
func (c *ResultCache) Put(fileID string, data models.ResultData) (evicted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	data = cloneResultData(data)
	if el, ok := c.items[fileID]; ok {
		el.Value.(*resultEntry).data = data
		c.order.MoveToFront(el)
		return false
	}
	if c.order.Len() >= c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*resultEntry).fileID)
		evicted = true
	}
	c.items[fileID] = c.order.PushFront(&resultEntry{fileID: fileID, data: data})
	return evicted
}

// Invalidate drops fileID. It reports whether an entry existed.
func (c *ResultCache) Invalidate(fileID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[fileID]
	if !ok {
		return false
	}
	c.order.Remove(el)
	delete(c.items, fileID)
	return true
}

func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *ResultCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	clear(c.items)
}

func cloneResultData(d models.ResultData) models.ResultData {
	return models.FileView{ResultData: d}.Clone().ResultData
}
