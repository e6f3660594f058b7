package cache

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/fsKV/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Event Types are used to signal cache changes to the sweeper
// --------------------------------------------------------------------------

type EventType int

const (
	EventTWrite EventType = iota
	EventTInvalidate
)

func (e EventType) String() string {
	switch e {
	case EventTWrite:
		return "Write"
	case EventTInvalidate:
		return "Invalidate"
	default:
		return "Unknown"
	}
}

type Event struct {
	Type     EventType
	Key      util.UintKey
	Deadline uint64
}

// --------------------------------------------------------------------------
// Entry Type
// --------------------------------------------------------------------------

// entry stores a cached value together with the full key for collision
// detection and its eviction deadline (unix nanoseconds, 0 = never).
type entry struct {
	Key      []byte
	Value    []byte
	Deadline uint64
}

// expired reports whether the entry stopped being servable at time now.
func (e entry) expired(now uint64) bool {
	return e.Deadline != 0 && now >= e.Deadline
}

// --------------------------------------------------------------------------
// Shard Type (partition of the cache)
// --------------------------------------------------------------------------

// shard is a partition of the cache. Each shard owns an independent map,
// an eviction schedule and the event queue feeding its sweeper goroutine.
type shard struct {
	Data     *xsync.MapOf[util.UintKey, entry]
	Schedule *util.ExpiryHeap // touched only by the sweeper
	Events   *eventQueue      // closing this stops the sweeper
}

func newShard(hasher func(util.UintKey, uint64) uint64) *shard {
	return &shard{
		Data:     xsync.NewMapOfWithHasher[util.UintKey, entry](hasher),
		Schedule: util.NewExpiryHeap(),
		Events:   newEventQueue(),
	}
}

// getShard returns the appropriate shard for a given key
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func getShard(key util.UintKey, shards []*shard) *shard {
	// Shift right by 7 bits to use higher-quality bits for distribution
	shiftedKey := uint64(key) >> 7
	return shards[shiftedKey%uint64(len(shards))]
}

// --------------------------------------------------------------------------
// Cache
// --------------------------------------------------------------------------

// Cache is a read-through in-memory cache with optional TTL, consulted by
// engines before the disk read. It must be invalidated on Set and Delete;
// values survive a compaction unchanged since compaction never alters value
// content, only placement.
type Cache struct {
	numShards int
	seed      uint64
	shards    []*shard
	ttl       time.Duration

	sweeping atomic.Bool
}

// New creates a cache with the given shard count (0 = number of CPUs) and
// TTL (0 = entries never expire).
//
// Thread-safety: This function is not thread-safe and should only be called
// once during initialization.
func New(shardCount int, ttl time.Duration) *Cache {
	if shardCount <= 0 {
		shardCount = runtime.NumCPU()
	}

	seed := util.GenerateSeed()
	hasher := func(key util.UintKey, mapSeed uint64) uint64 {
		return uint64(key) ^ mapSeed
	}

	shards := make([]*shard, shardCount)
	for i := 0; i < shardCount; i++ {
		shards[i] = newShard(hasher)
	}

	c := &Cache{
		numShards: shardCount,
		seed:      seed,
		shards:    shards,
		ttl:       ttl,
	}

	if ttl > 0 {
		c.startSweepers()
	}

	return c
}

// hashKey converts a byte key to the internal representation, applying the
// cache seed to decorrelate instances.
func (c *Cache) hashKey(key []byte) util.UintKey {
	return util.HashBytes(key, c.seed)
}

// --------------------------------------------------------------------------
// Public API
// --------------------------------------------------------------------------

// Get returns a copy of the cached value for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Cache) Get(key []byte) ([]byte, bool) {
	intKey := c.hashKey(key)
	s := getShard(intKey, c.shards)

	e, ok := s.Data.Load(intKey)
	if !ok {
		return nil, false
	}
	// hashed keys can collide: verify the full key
	if string(e.Key) != string(key) {
		return nil, false
	}
	if e.expired(uint64(time.Now().UnixNano())) {
		return nil, false
	}

	value := make([]byte, len(e.Value))
	copy(value, e.Value)
	return value, true
}

// Put stores a copy of value under key, re-arming its TTL.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Cache) Put(key, value []byte) {
	intKey := c.hashKey(key)
	s := getShard(intKey, c.shards)

	keyCopy := make([]byte, len(key))
	copy(keyCopy, key)
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	var deadline uint64
	if c.ttl > 0 {
		deadline = uint64(time.Now().Add(c.ttl).UnixNano())
	}

	s.Data.Store(intKey, entry{Key: keyCopy, Value: valueCopy, Deadline: deadline})

	if c.ttl > 0 {
		s.Events.Push(Event{Type: EventTWrite, Key: intKey, Deadline: deadline})
	}
}

// Invalidate drops the cached value for key, if any.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Cache) Invalidate(key []byte) {
	intKey := c.hashKey(key)
	s := getShard(intKey, c.shards)

	s.Data.Delete(intKey)

	if c.ttl > 0 {
		s.Events.Push(Event{Type: EventTInvalidate, Key: intKey})
	}
}

// Clear drops every cached value.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Cache) Clear() {
	for _, s := range c.shards {
		s.Data.Range(func(key util.UintKey, _ entry) bool {
			s.Data.Delete(key)
			if c.ttl > 0 {
				s.Events.Push(Event{Type: EventTInvalidate, Key: key})
			}
			return true
		})
	}
}

// Len returns the number of cached entries, including not-yet-swept ones.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		n += s.Data.Size()
	}
	return n
}

// Close stops the sweeper goroutines and the event-queue consumers.
// The cache must not be used afterwards.
func (c *Cache) Close() {
	c.sweeping.Store(false)
	for _, s := range c.shards {
		s.Events.Close()
	}
}

// --------------------------------------------------------------------------
// Sweeping
// --------------------------------------------------------------------------

// startSweepers starts one sweeper goroutine per shard.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (c *Cache) startSweepers() {
	if c.sweeping.CompareAndSwap(false, true) {
		for _, s := range c.shards {
			go c.sweep(s)
		}
	}
}

// sweep consumes the shard's event queue, maintains the eviction schedule and
// evicts due entries. Events arrive pre-coalesced (last event per key), so a
// burst of writes to one key costs a single schedule update here. Entries are
// checked for expiry on read as well, so the sweeper only bounds memory, it
// is not needed for correctness.
func (c *Cache) sweep(s *shard) {
	ticker := time.NewTicker(c.ttl / 2)
	defer ticker.Stop()

	for {
		select {
		case batch, ok := <-s.Events.Recv():
			if !ok {
				return
			}
			for _, ev := range batch {
				switch ev.Type {
				case EventTWrite:
					s.Schedule.Schedule(uint64(ev.Key), ev.Deadline)
				case EventTInvalidate:
					s.Schedule.RemoveByKey(uint64(ev.Key))
				}
			}

		case <-ticker.C:
			now := uint64(time.Now().UnixNano())
			for _, key := range s.Schedule.PopDue(now) {
				intKey := util.UintKey(key)
				// re-check the deadline: the entry may have been re-armed
				if e, ok := s.Data.Load(intKey); ok && e.expired(now) {
					s.Data.Delete(intKey)
				}
			}
		}
	}
}
