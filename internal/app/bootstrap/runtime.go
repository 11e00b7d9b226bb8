// Package bootstrap builds the runtime dependencies shared by the review
// server and the analyzer from configuration.
package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/chatrisk/cmd/mainconfig"
	appconfig "github.com/wolfman30/chatrisk/internal/config"
	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

// Backend and lock selectors.
const (
	BackendFS    = "fs"
	BackendS3    = "s3"
	LockLocal    = "local"
	LockRedis    = "redis"
	lockKeySpace = "chatrisk:lock:"
)

// AWSLoader loads the AWS SDK config on first use so deployments that only
// touch local files never need credentials.
type AWSLoader func(ctx context.Context) (aws.Config, error)

// NewAWSLoader returns an AWSLoader backed by mainconfig.LoadAWSConfig. The
// result is cached.
func NewAWSLoader(cfg *appconfig.Config) AWSLoader {
	var (
		loaded bool
		awsCfg aws.Config
	)
	return func(ctx context.Context) (aws.Config, error) {
		if loaded {
			return awsCfg, nil
		}
		c, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return aws.Config{}, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		awsCfg, loaded = c, true
		return awsCfg, nil
	}
}

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		return nil
	}
	return client
}

// BuildLocker selects the day-file lock. The Redis lock needs a client.
func BuildLocker(cfg *appconfig.Config, client *redis.Client) (daystore.Locker, error) {
	switch cfg.LockBackend {
	case "", LockLocal:
		return daystore.NewLocalLocker(), nil
	case LockRedis:
		if client == nil {
			return nil, fmt.Errorf("bootstrap: LOCK_BACKEND=redis requires REDIS_ADDR")
		}
		return daystore.NewRedisLocker(client, lockKeySpace, cfg.LockTTL), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown lock backend %q", cfg.LockBackend)
	}
}

// BuildBackend selects where day collections live. dir is used by the fs
// backend; the s3 backend reads S3_BUCKET and S3_PREFIX.
func BuildBackend(ctx context.Context, cfg *appconfig.Config, dir string, loadAWS AWSLoader) (daystore.Backend, error) {
	switch cfg.StoreBackend {
	case "", BackendFS:
		return daystore.NewFSBackend(dir), nil
	case BackendS3:
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("bootstrap: STORE_BACKEND=s3 requires S3_BUCKET")
		}
		awsCfg, err := loadAWS(ctx)
		if err != nil {
			return nil, err
		}
		return daystore.NewS3Backend(mainconfig.NewS3Client(awsCfg, cfg), cfg.S3Bucket, cfg.S3Prefix), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown store backend %q", cfg.StoreBackend)
	}
}

// StoreDeps carries the optional pieces BuildStore wires in.
type StoreDeps struct {
	Redis      *redis.Client
	Logger     *logging.Logger
	OnLockWait func(time.Duration)
}

// BuildStore assembles the processed-day store.
func BuildStore(ctx context.Context, cfg *appconfig.Config, loadAWS AWSLoader, deps StoreDeps) (*daystore.Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	backend, err := BuildBackend(ctx, cfg, cfg.DataDir, loadAWS)
	if err != nil {
		return nil, err
	}
	locker, err := BuildLocker(cfg, deps.Redis)
	if err != nil {
		return nil, err
	}
	return daystore.New(backend, locker, daystore.Options{
		LockTimeout: cfg.LockTimeout,
		Logger:      deps.Logger,
		OnLockWait:  deps.OnLockWait,
	}), nil
}

// OpenAuditDB connects to Postgres for the review audit log. It returns nil
// when no URL is configured or the database is unreachable; reviews then run
// without an audit trail.
func OpenAuditDB(ctx context.Context, databaseURL string, logger *logging.Logger) *sql.DB {
	if strings.TrimSpace(databaseURL) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		logger.Warn("audit database unavailable", "error", err)
		return nil
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		logger.Warn("audit database unavailable", "error", err)
		pool.Close()
		return nil
	}
	return stdlib.OpenDBFromPool(pool)
}
