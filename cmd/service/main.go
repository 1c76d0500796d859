package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/superorange0707/environment-booking/internal/auth"
	"github.com/superorange0707/environment-booking/internal/config"
	"github.com/superorange0707/environment-booking/internal/feed"
	"github.com/superorange0707/environment-booking/internal/guard"
	"github.com/superorange0707/environment-booking/internal/health"
	"github.com/superorange0707/environment-booking/internal/logger"
	"github.com/superorange0707/environment-booking/internal/metrics"
	"github.com/superorange0707/environment-booking/internal/middleware"
	"github.com/superorange0707/environment-booking/internal/server"
	"github.com/superorange0707/environment-booking/internal/storage"
	"github.com/superorange0707/environment-booking/internal/store"
	"github.com/superorange0707/environment-booking/internal/ws"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "service",
	Short: "Environment booking service",
	Long:  `A reservation service for shared pilot environments: bookings over inclusive date ranges, projected availability, and a live change feed.`,
	RunE:  runServer,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("Version: %s\n", version)
		fmt.Printf("Commit:  %s\n", commit)
		fmt.Printf("Built:   %s\n", date)
	},
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|status]",
	Short:     "Run database schema migrations",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"up", "down", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		return storage.Migrate(ctx, cfg.DatabaseDSN, args[0])
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(migrateCmd)

	// Configuration flags
	rootCmd.Flags().Int("api-port", 8080, "API server port")
	rootCmd.Flags().String("api-host", "0.0.0.0", "API server host")
	rootCmd.Flags().Int("probe-port", 8081, "Probe server port")
	rootCmd.Flags().String("probe-host", "0.0.0.0", "Probe server host")
	rootCmd.Flags().Int("metrics-port", 9090, "Metrics server port")
	rootCmd.Flags().String("metrics-host", "0.0.0.0", "Metrics server host")
	rootCmd.Flags().Bool("tls-enabled", false, "Enable TLS for API server")
	rootCmd.Flags().String("tls-cert", "", "Path to TLS certificate")
	rootCmd.Flags().String("tls-key", "", "Path to TLS key")
	rootCmd.Flags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.Flags().String("log-format", "json", "Log format (json, console)")
	rootCmd.Flags().Duration("shutdown-timeout", 30*time.Second, "Graceful shutdown timeout (e.g., 30s)")
	rootCmd.Flags().Duration("health-check-timeout", 5*time.Second, "Health check timeout (e.g., 5s)")
	rootCmd.Flags().Duration("health-cache-duration", 10*time.Second, "Health check cache duration (e.g., 10s)")

	// Database flags
	rootCmd.Flags().String("db-dsn", "", "PostgreSQL connection string")
	rootCmd.Flags().Int("db-max-conns", 10, "Database connection pool size")

	// Authentication flags
	rootCmd.Flags().String("auth-mode", "jwt", "Authentication mode (jwt, userinfo)")
	rootCmd.Flags().String("auth-jwt-secret", "", "HMAC secret for JWT verification")
	rootCmd.Flags().String("auth-userinfo-url", "", "Identity provider userinfo endpoint")
	rootCmd.Flags().Duration("auth-timeout", 5*time.Second, "Userinfo request timeout")

	// Admission guard flags
	rootCmd.Flags().Duration("guard-lease-ttl", 10*time.Second, "Admission lease TTL per environment")

	// Rate limit flags
	rootCmd.Flags().Bool("ratelimit-enabled", false, "Enable redis-backed rate limiting on mutations")
	rootCmd.Flags().String("ratelimit-redis", "localhost:6379", "Redis address for rate limit counters")
	rootCmd.Flags().Int("ratelimit-max", 30, "Maximum mutating requests per window")
	rootCmd.Flags().Duration("ratelimit-window", time.Minute, "Rate limit window")

	// WebSocket flags
	rootCmd.Flags().Duration("ws-write-timeout", 10*time.Second, "WebSocket write timeout")
	rootCmd.Flags().Duration("ws-ping-interval", 30*time.Second, "WebSocket ping interval")

	// Lease store (Olric) flags
	rootCmd.Flags().String("olric-host", store.DefaultBindAddr, "Olric bind host")
	rootCmd.Flags().Int("olric-port", store.DefaultBindPort, "Olric bind port")
	rootCmd.Flags().StringSlice("olric-join-addrs", []string{}, "Olric cluster join addresses")
	rootCmd.Flags().String("olric-replication-mode", store.DefaultReplicationMode, "Olric replication mode (sync/async)")
	rootCmd.Flags().Int("olric-replication-factor", store.DefaultReplicationFactor, "Olric replication factor")
	rootCmd.Flags().Int("olric-partition-count", int(store.DefaultPartitionCount), "Olric partition count")
	rootCmd.Flags().Int("olric-backup-count", store.DefaultBackupCount, "Olric backup count")
	rootCmd.Flags().String("olric-backup-mode", store.DefaultBackupMode, "Olric backup mode (sync/async)")
	rootCmd.Flags().Int("olric-member-count-quorum", store.DefaultMemberCountQuorum, "Olric member count quorum")
	rootCmd.Flags().Duration("olric-join-retry-interval", store.DefaultJoinRetryInterval, "Olric join retry interval")
	rootCmd.Flags().Int("olric-max-join-attempts", store.DefaultMaxJoinAttempts, "Olric max join attempts")
	rootCmd.Flags().String("olric-log-level", "", "Olric log level (DEBUG/INFO/WARN/ERROR, defaults to main log level)")
	rootCmd.Flags().Duration("olric-keep-alive-period", store.DefaultKeepAlivePeriod, "Olric keep alive period")
	rootCmd.Flags().Duration("olric-request-timeout", store.DefaultRequestTimeout, "Olric request timeout")
	rootCmd.Flags().String("olric-dmap-name", store.DefaultDMapName, "Olric DMap name for admission leases")

	// Bind flags to viper
	_ = viper.BindPFlag("api.port", rootCmd.Flags().Lookup("api-port"))
	_ = viper.BindPFlag("api.host", rootCmd.Flags().Lookup("api-host"))
	_ = viper.BindPFlag("probe.port", rootCmd.Flags().Lookup("probe-port"))
	_ = viper.BindPFlag("probe.host", rootCmd.Flags().Lookup("probe-host"))
	_ = viper.BindPFlag("metrics.port", rootCmd.Flags().Lookup("metrics-port"))
	_ = viper.BindPFlag("metrics.host", rootCmd.Flags().Lookup("metrics-host"))
	_ = viper.BindPFlag("tls.enabled", rootCmd.Flags().Lookup("tls-enabled"))
	_ = viper.BindPFlag("tls.cert", rootCmd.Flags().Lookup("tls-cert"))
	_ = viper.BindPFlag("tls.key", rootCmd.Flags().Lookup("tls-key"))
	_ = viper.BindPFlag("log.level", rootCmd.Flags().Lookup("log-level"))
	_ = viper.BindPFlag("log.format", rootCmd.Flags().Lookup("log-format"))
	_ = viper.BindPFlag("shutdown.timeout", rootCmd.Flags().Lookup("shutdown-timeout"))
	_ = viper.BindPFlag("health.check_timeout", rootCmd.Flags().Lookup("health-check-timeout"))
	_ = viper.BindPFlag("health.cache_duration", rootCmd.Flags().Lookup("health-cache-duration"))
	_ = viper.BindPFlag("db.dsn", rootCmd.Flags().Lookup("db-dsn"))
	_ = viper.BindPFlag("db.max_conns", rootCmd.Flags().Lookup("db-max-conns"))
	_ = viper.BindPFlag("auth.mode", rootCmd.Flags().Lookup("auth-mode"))
	_ = viper.BindPFlag("auth.jwt_secret", rootCmd.Flags().Lookup("auth-jwt-secret"))
	_ = viper.BindPFlag("auth.userinfo_url", rootCmd.Flags().Lookup("auth-userinfo-url"))
	_ = viper.BindPFlag("auth.timeout", rootCmd.Flags().Lookup("auth-timeout"))
	_ = viper.BindPFlag("guard.lease_ttl", rootCmd.Flags().Lookup("guard-lease-ttl"))
	_ = viper.BindPFlag("ratelimit.enabled", rootCmd.Flags().Lookup("ratelimit-enabled"))
	_ = viper.BindPFlag("ratelimit.redis", rootCmd.Flags().Lookup("ratelimit-redis"))
	_ = viper.BindPFlag("ratelimit.max", rootCmd.Flags().Lookup("ratelimit-max"))
	_ = viper.BindPFlag("ratelimit.window", rootCmd.Flags().Lookup("ratelimit-window"))
	_ = viper.BindPFlag("ws.write_timeout", rootCmd.Flags().Lookup("ws-write-timeout"))
	_ = viper.BindPFlag("ws.ping_interval", rootCmd.Flags().Lookup("ws-ping-interval"))
	_ = viper.BindPFlag("olric.host", rootCmd.Flags().Lookup("olric-host"))
	_ = viper.BindPFlag("olric.port", rootCmd.Flags().Lookup("olric-port"))
	_ = viper.BindPFlag("olric.join_addrs", rootCmd.Flags().Lookup("olric-join-addrs"))
	_ = viper.BindPFlag("olric.replication_mode", rootCmd.Flags().Lookup("olric-replication-mode"))
	_ = viper.BindPFlag("olric.replication_factor", rootCmd.Flags().Lookup("olric-replication-factor"))
	_ = viper.BindPFlag("olric.partition_count", rootCmd.Flags().Lookup("olric-partition-count"))
	_ = viper.BindPFlag("olric.backup_count", rootCmd.Flags().Lookup("olric-backup-count"))
	_ = viper.BindPFlag("olric.backup_mode", rootCmd.Flags().Lookup("olric-backup-mode"))
	_ = viper.BindPFlag("olric.member_count_quorum", rootCmd.Flags().Lookup("olric-member-count-quorum"))
	_ = viper.BindPFlag("olric.join_retry_interval", rootCmd.Flags().Lookup("olric-join-retry-interval"))
	_ = viper.BindPFlag("olric.max_join_attempts", rootCmd.Flags().Lookup("olric-max-join-attempts"))
	_ = viper.BindPFlag("olric.log_level", rootCmd.Flags().Lookup("olric-log-level"))
	_ = viper.BindPFlag("olric.keep_alive_period", rootCmd.Flags().Lookup("olric-keep-alive-period"))
	_ = viper.BindPFlag("olric.request_timeout", rootCmd.Flags().Lookup("olric-request-timeout"))
	_ = viper.BindPFlag("olric.dmap_name", rootCmd.Flags().Lookup("olric-dmap-name"))
}

// newVerifier selects the token verifier from configuration.
func newVerifier(cfg *config.Config, log *zap.Logger) (auth.Verifier, error) {
	switch cfg.AuthMode {
	case "userinfo":
		return auth.NewUserInfoVerifier(cfg.AuthUserInfoURL, cfg.AuthTimeout, log), nil
	default:
		return auth.NewJWTVerifier(cfg.AuthJWTSecret)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	log.Info("Starting environment booking service",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	buildInfo := map[string]string{
		"version": version,
		"commit":  commit,
		"date":    date,
	}
	m := metrics.NewMetrics(cfg.MetricsNamespace, buildInfo)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	db, err := storage.NewPostgres(ctx, cfg.DatabaseDSN, cfg.DatabaseMaxConns, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Lease store and admission guard
	olricMetrics := store.NewOlricMetrics(cfg.MetricsNamespace, m.Registry())
	leaseStore, err := store.NewOlricStore(ctx, cfg.Olric, log, olricMetrics)
	if err != nil {
		return fmt.Errorf("failed to start lease store: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := leaseStore.Close(shutdownCtx); err != nil {
			log.Error("Failed to close lease store", zap.Error(err))
		}
	}()

	collector := store.NewMetricsCollector(log, leaseStore, olricMetrics, 15*time.Second)
	collector.Start()
	defer collector.Stop()

	admission := guard.NewEnvironmentGuard(leaseStore, log, cfg.GuardLeaseTTL)

	// Change feed
	hub := ws.NewHub(log, nil)
	go hub.Run(ctx)
	upgrader := ws.NewUpgrader(cfg.WSWriteTimeout, cfg.WSPingInterval, log)
	broadcaster := feed.NewBroadcaster(db, hub, log)

	// Authentication
	verifier, err := newVerifier(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to configure authentication: %w", err)
	}

	// Rate limiting
	var limiter *middleware.RateLimiter
	if cfg.RateLimitEnabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.RateLimitRedis})
		defer client.Close()
		limiter = middleware.NewRateLimiter(client, cfg.RateLimitMax, cfg.RateLimitWindow, log)
	}

	srv, err := server.New(cfg, log, m, server.Dependencies{
		Store:       db,
		Admission:   admission,
		Publisher:   broadcaster,
		Hub:         hub,
		Upgrader:    upgrader,
		Verifier:    verifier,
		RateLimiter: limiter,
		ExtraChecks: []health.Checker{
			store.NewConnectionHealthChecker(log, leaseStore),
			store.NewClusterHealthChecker(log, leaseStore, cfg.Olric.MemberCountQuorum, len(cfg.Olric.JoinAddrs) == 0),
			store.NewLeaseHealthChecker(log, leaseStore),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	// Start server
	if err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	log.Info("Service started successfully")

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Error during shutdown", zap.Error(err))
		return err
	}

	log.Info("Service stopped gracefully")
	return nil
}
