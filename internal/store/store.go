// Package store provides the distributed key/value layer used for
// short-lived admission leases. The embedded Olric server keeps lease
// state shared across replicas of the service, so two instances racing
// to admit a booking for the same environment agree on a single winner.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrKeyExists is returned by PutIfAbsent when another holder already
// owns the key.
var ErrKeyExists = errors.New("key already exists")

// Store defines the interface for the distributed lease store.
type Store interface {
	// Put stores a value with an optional TTL. If ttl is 0, the key will
	// not expire.
	Put(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// PutIfAbsent stores a value only when the key is free, with a TTL so
	// abandoned leases self-expire. Returns ErrKeyExists when the key is
	// already held.
	PutIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get retrieves a value for the given key.
	// Returns an error if the key does not exist or on connection issues.
	Get(ctx context.Context, key string) (interface{}, error)

	// Delete removes a value for the given key.
	// Returns nil if the key doesn't exist (idempotent operation).
	Delete(ctx context.Context, key string) error

	// Exists checks if a key exists in the store.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifies connectivity to the store.
	// This is used for health checks to ensure the store is reachable.
	Ping(ctx context.Context) error

	// Stats returns current statistics about the store: cluster
	// membership, partition information, and storage metrics.
	Stats(ctx context.Context) (*StoreStats, error)

	// Close gracefully shuts down the store connection. For the embedded
	// Olric server this also leaves the cluster properly.
	Close(ctx context.Context) error
}

// StoreStats represents statistics about the distributed store.
// These metrics are useful for monitoring cluster health and performance.
type StoreStats struct {
	// ClusterMembers is the number of active members in the cluster.
	ClusterMembers int

	// PartitionCount is the total number of partitions in the cluster.
	PartitionCount int

	// BackupCount is the number of backup replicas for partitions.
	BackupCount int

	// ReplicationFactor is the number of copies of each partition,
	// including both primary and backup replicas.
	ReplicationFactor int

	// TotalKeys is the total number of keys stored across all partitions.
	TotalKeys int64

	// MemoryUsage is the total memory used by the store in bytes.
	MemoryUsage int64
}
