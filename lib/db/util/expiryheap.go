// Package util
//
// This file provides a specialized priority queue used by cache sweepers.
//
// The implementation combines a binary heap ordered by expiry deadline with a
// hash map for key-based access. A sweeper goroutine repeatedly peeks at the
// earliest deadline, evicts everything that is due, and goes back to sleep;
// writers remove or re-schedule entries directly by key when a value is
// overwritten or invalidated before its deadline.
//
// Complexity:
//   - O(log n) for deadline operations (push, pop, re-schedule)
//   - O(1) for key-based lookups and existence checks
//   - O(log n) for key-based removal
//
// Concurrency: the heap is not thread-safe; the owning shard applies external
// synchronization (in the cache, only the sweeper goroutine touches it).
package util

import (
	"container/heap"
	"strconv"
)

// HeapItem is a scheduled eviction: a key and the deadline at which the
// associated cache entry stops being served.
type HeapItem struct {
	Key      uint64 // Unique identifier for the entry
	Deadline uint64 // Eviction deadline, the heap is a min-heap over this
	index    int    // Index in the heap, maintained by heap package
}

func (i *HeapItem) String() string {
	return "{Key: " + strconv.FormatUint(i.Key, 10) + ", Deadline: " + strconv.FormatUint(i.Deadline, 10) + "}"
}

// ExpiryHeap implements the eviction schedule of a cache shard
// with both heap operations and key-based access
type ExpiryHeap struct {
	items    []*HeapItem          // The actual heap slice
	itemsMap map[uint64]*HeapItem // Map for O(1) access by key
}

// NewExpiryHeap creates a new eviction schedule
func NewExpiryHeap() *ExpiryHeap {
	return &ExpiryHeap{
		items:    make([]*HeapItem, 0),
		itemsMap: make(map[uint64]*HeapItem),
	}
}

// Len returns the number of items in the schedule (part of heap.Interface)
func (eh *ExpiryHeap) Len() int { return len(eh.items) }

// Less compares items by deadline (part of heap.Interface)
// The earliest deadline sits at the root (min-heap)
func (eh *ExpiryHeap) Less(i, j int) bool {
	return eh.items[i].Deadline < eh.items[j].Deadline
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (eh *ExpiryHeap) Swap(i, j int) {
	eh.items[i], eh.items[j] = eh.items[j], eh.items[i]
	eh.items[i].index = i
	eh.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface)
func (eh *ExpiryHeap) Push(x interface{}) {
	n := len(eh.items)
	item := x.(*HeapItem)
	item.index = n
	eh.items = append(eh.items, item)
	eh.itemsMap[item.Key] = item
}

// Pop removes and returns the item with the earliest deadline (part of heap.Interface)
func (eh *ExpiryHeap) Pop() interface{} {
	old := eh.items
	n := len(old)
	item := old[n-1]
	old[n-1] = nil  // Avoid memory leak
	item.index = -1 // For safety
	eh.items = old[:n-1]
	delete(eh.itemsMap, item.Key)
	return item
}

// Schedule adds a new eviction or re-schedules an existing one
func (eh *ExpiryHeap) Schedule(key, deadline uint64) {
	// Check if item already exists
	if item, exists := eh.itemsMap[key]; exists {
		// Update deadline and fix heap
		item.Deadline = deadline
		heap.Fix(eh, item.index)
		return
	}

	// Create and add new item
	item := &HeapItem{
		Key:      key,
		Deadline: deadline,
	}
	heap.Push(eh, item)
}

// RemoveByKey removes a scheduled eviction by its key
func (eh *ExpiryHeap) RemoveByKey(key uint64) (uint64, bool) {
	item, exists := eh.itemsMap[key]
	if !exists {
		return 0, false
	}

	// Remove from heap
	heap.Remove(eh, item.index)
	return item.Deadline, true
}

// PopDue removes and returns the keys of all items whose deadline is <= now
func (eh *ExpiryHeap) PopDue(now uint64) []uint64 {
	var due []uint64
	for len(eh.items) > 0 && eh.items[0].Deadline <= now {
		item := heap.Pop(eh).(*HeapItem)
		due = append(due, item.Key)
	}
	return due
}

// Peek returns the item with the earliest deadline without removing it
func (eh *ExpiryHeap) Peek() (*HeapItem, bool) {
	if len(eh.items) == 0 {
		return nil, false
	}
	return eh.items[0], true
}

// Contains checks if a key is scheduled
func (eh *ExpiryHeap) Contains(key uint64) bool {
	_, exists := eh.itemsMap[key]
	return exists
}
