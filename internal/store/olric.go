package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"time"

	"github.com/hashicorp/logutils"
	"github.com/olric-data/olric"
	"github.com/olric-data/olric/config"
	"go.uber.org/zap"
)

// OlricStore implements the Store interface using the Olric distributed
// key/value store. It runs an embedded Olric server so lease state is
// shared across service replicas without an external dependency.
type OlricStore struct {
	config  *OlricConfig
	logger  *zap.Logger
	metrics *OlricMetrics
	db      *olric.Olric
	client  *olric.EmbeddedClient
	dmap    olric.DMap
}

// NewOlricStore creates a new Olric-based lease store. It initializes
// and starts an embedded Olric server, optionally joining a cluster.
// metrics may be nil to disable per-operation recording.
func NewOlricStore(ctx context.Context, cfg *OlricConfig, logger *zap.Logger, metrics *OlricMetrics) (*OlricStore, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid olric configuration: %w", err)
	}

	store := &OlricStore{
		config:  cfg,
		logger:  logger,
		metrics: metrics,
	}

	olricCfg, err := store.createOlricConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create olric config: %w", err)
	}

	logger.Info("Starting Olric embedded server",
		zap.String("bind_addr", fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.BindPort)),
		zap.Bool("single_node", cfg.IsSingleNode()),
		zap.Strings("join_addrs", cfg.JoinAddrs),
		zap.Int("replication_factor", cfg.ReplicationFactor),
		zap.Uint64("partition_count", cfg.PartitionCount),
	)

	db, err := olric.New(olricCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create olric instance: %w", err)
	}

	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("failed to start olric: %w", err)
	}

	store.db = db

	client := db.NewEmbeddedClient()
	store.client = client

	// Wait for cluster to be ready
	if err := store.waitForCluster(ctx); err != nil {
		_ = db.Shutdown(context.Background())
		return nil, fmt.Errorf("cluster not ready: %w", err)
	}

	// DMap holding the admission leases
	dmap, err := client.NewDMap(cfg.DMapName)
	if err != nil {
		_ = db.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create dmap: %w", err)
	}
	store.dmap = dmap

	members, err := client.Members(ctx)
	if err != nil {
		logger.Warn("Failed to get members", zap.Error(err))
	}

	logger.Info("Olric lease store initialized",
		zap.Int("cluster_members", len(members)),
		zap.String("dmap", cfg.DMapName),
	)

	return store, nil
}

// createOlricConfig creates an Olric configuration from the OlricConfig.
func (s *OlricStore) createOlricConfig() (*config.Config, error) {
	// Olric logs through the stdlib logger, so filter its output by level
	// instead of piping everything to zap.
	logFilter := &logutils.LevelFilter{
		Levels:   []logutils.LogLevel{"DEBUG", "INFO", "WARN", "ERROR"},
		MinLevel: logutils.LogLevel(s.config.LogLevel),
		Writer:   io.Discard,
	}

	if s.config.LogLevel == "DEBUG" || s.config.LogLevel == "INFO" {
		logFilter.Writer = os.Stdout
	}

	olricLogger := log.New(logFilter, "", log.LstdFlags)

	c := config.New("lan")
	c.BindAddr = s.config.BindAddr
	c.BindPort = s.config.BindPort
	c.KeepAlivePeriod = s.config.KeepAlivePeriod
	c.PartitionCount = s.config.PartitionCount
	c.ReplicaCount = s.config.ReplicationFactor
	c.ReadQuorum = 1
	c.WriteQuorum = 1
	c.MemberCountQuorum = int32(s.config.MemberCountQuorum)
	c.LogLevel = s.config.LogLevel
	c.Logger = olricLogger
	c.JoinRetryInterval = s.config.JoinRetryInterval
	c.MaxJoinAttempts = s.config.MaxJoinAttempts

	if s.config.ReplicationMode == "sync" {
		c.ReplicationMode = config.SyncReplicationMode
	} else {
		c.ReplicationMode = config.AsyncReplicationMode
	}

	if len(s.config.JoinAddrs) > 0 {
		c.Peers = s.config.JoinAddrs
	}

	return c, nil
}

// waitForCluster waits for the cluster to be ready based on member count quorum.
func (s *OlricStore) waitForCluster(ctx context.Context) error {
	// If single-node mode, we're immediately ready
	if s.config.IsSingleNode() {
		s.logger.Info("Running in single-node mode, cluster ready")
		return nil
	}

	ticker := time.NewTicker(s.config.JoinRetryInterval)
	defer ticker.Stop()

	attempts := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			attempts++

			members, err := s.client.Members(context.Background())
			memberCount := len(members)
			if err != nil {
				s.logger.Warn("Failed to get members", zap.Error(err))
				memberCount = 0
			}

			s.logger.Debug("Waiting for cluster members",
				zap.Int("current_members", memberCount),
				zap.Int("required_members", s.config.MemberCountQuorum),
				zap.Int("attempt", attempts),
			)

			if memberCount >= s.config.MemberCountQuorum {
				s.logger.Info("Cluster member quorum reached",
					zap.Int("member_count", memberCount),
					zap.Int("quorum", s.config.MemberCountQuorum),
				)
				return nil
			}

			if attempts >= s.config.MaxJoinAttempts {
				return fmt.Errorf("max join attempts (%d) reached, only %d/%d members present",
					s.config.MaxJoinAttempts, memberCount, s.config.MemberCountQuorum)
			}
		}
	}
}

// record tracks one store operation when metrics are wired.
func (s *OlricStore) record(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		s.metrics.RecordError(operation, "store")
	}
	s.metrics.RecordOperation(operation, status, time.Since(start))
}

// Put stores a value with an optional TTL.
func (s *OlricStore) Put(ctx context.Context, key string, value interface{}, ttl time.Duration) (err error) {
	defer func(start time.Time) { s.record("put", start, err) }(time.Now())

	if ttl > 0 {
		return s.dmap.Put(ctx, key, value, olric.EX(ttl))
	}
	return s.dmap.Put(ctx, key, value)
}

// PutIfAbsent stores a value only when the key is free. The TTL bounds
// how long an abandoned lease can block other holders.
func (s *OlricStore) PutIfAbsent(ctx context.Context, key string, value interface{}, ttl time.Duration) (err error) {
	defer func(start time.Time) { s.record("put_if_absent", start, err) }(time.Now())

	opts := []olric.PutOption{olric.NX()}
	if ttl > 0 {
		opts = append(opts, olric.EX(ttl))
	}

	err = s.dmap.Put(ctx, key, value, opts...)
	if errors.Is(err, olric.ErrKeyFound) {
		return ErrKeyExists
	}
	return err
}

// Get retrieves a value for the given key.
func (s *OlricStore) Get(ctx context.Context, key string) (val interface{}, err error) {
	defer func(start time.Time) { s.record("get", start, err) }(time.Now())

	resp, err := s.dmap.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	var result interface{}
	if err = resp.Scan(&result); err != nil {
		return nil, err
	}
	return result, nil
}

// Delete removes a value for the given key. Deleting an absent key is
// not an error so releases stay idempotent.
func (s *OlricStore) Delete(ctx context.Context, key string) (err error) {
	defer func(start time.Time) { s.record("delete", start, err) }(time.Now())

	_, err = s.dmap.Delete(ctx, key)
	if err != nil && !errors.Is(err, olric.ErrKeyNotFound) {
		return err
	}
	return nil
}

// Exists checks if a key exists in the store.
func (s *OlricStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := s.dmap.Get(ctx, key)
	if err != nil {
		if errors.Is(err, olric.ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Ping verifies connectivity to the store.
func (s *OlricStore) Ping(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.BindAddr, fmt.Sprintf("%d", s.config.BindPort))
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		return fmt.Errorf("failed to connect to olric: %w", err)
	}
	defer conn.Close()

	if s.db == nil {
		return fmt.Errorf("olric db is nil")
	}

	return nil
}

// Stats returns current statistics about the store.
func (s *OlricStore) Stats(ctx context.Context) (*StoreStats, error) {
	stats := &StoreStats{}

	members, err := s.client.Members(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	stats.ClusterMembers = len(members)

	stats.PartitionCount = int(s.config.PartitionCount)
	stats.BackupCount = s.config.BackupCount
	stats.ReplicationFactor = s.config.ReplicationFactor

	return stats, nil
}

// Close gracefully shuts down the store.
func (s *OlricStore) Close(ctx context.Context) error {
	s.logger.Info("Shutting down Olric lease store")

	if s.db == nil {
		return nil
	}

	if err := s.db.Shutdown(ctx); err != nil {
		s.logger.Error("Error shutting down Olric", zap.Error(err))
		return err
	}

	s.logger.Info("Olric lease store shut down successfully")
	return nil
}
