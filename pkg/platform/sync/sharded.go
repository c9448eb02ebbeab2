// Package sync provides keyed locking primitives.
package sync

import "sync"

// shardCount trades memory for contention; keys sharing a shard serialize.
const shardCount = 32

// ShardedMutex is a keyed mutex: each key hashes to one of a fixed set of
// shards, so unrelated keys rarely contend while equal keys always
// serialize.
type ShardedMutex struct {
	shards [shardCount]sync.Mutex
}

func NewShardedMutex() *ShardedMutex {
	return &ShardedMutex{}
}

// Lock acquires the shard the key hashes to. The empty key uses shard 0.
func (m *ShardedMutex) Lock(key string) {
	m.shards[m.shardFor(key)].Lock()
}

// Unlock releases the shard the key hashes to. Must be called with the same
// key that was locked.
func (m *ShardedMutex) Unlock(key string) {
	m.shards[m.shardFor(key)].Unlock()
}

func (m *ShardedMutex) shardFor(key string) int {
	if key == "" {
		return 0
	}
	return int(hashKey(key) % shardCount)
}

// hashKey is a multiplicative string hash; distribution only, never
// persisted.
func hashKey(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = h*31 + uint32(s[i])
	}
	return h
}
