package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appconfig "github.com/wolfman30/chatrisk/internal/config"
	"github.com/wolfman30/chatrisk/internal/daystore"
	"github.com/wolfman30/chatrisk/pkg/logging"
)

func failingAWS(t *testing.T) AWSLoader {
	return func(context.Context) (aws.Config, error) {
		t.Fatalf("aws config should not be loaded")
		return aws.Config{}, nil
	}
}

func TestBuildRedisClientDisabled(t *testing.T) {
	assert.Nil(t, BuildRedisClient(context.Background(), &appconfig.Config{}, nil, true))
}

func TestBuildRedisClientVerifies(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := &appconfig.Config{RedisAddr: mr.Addr()}
	client := BuildRedisClient(context.Background(), cfg, logging.New("error"), true)
	require.NotNil(t, client)
	_ = client.Close()

	mr.Close()
	assert.Nil(t, BuildRedisClient(context.Background(), cfg, logging.New("error"), true))
}

func TestBuildLocker(t *testing.T) {
	l, err := BuildLocker(&appconfig.Config{LockBackend: LockLocal}, nil)
	require.NoError(t, err)
	assert.IsType(t, &daystore.LocalLocker{}, l)

	_, err = BuildLocker(&appconfig.Config{LockBackend: LockRedis}, nil)
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client := BuildRedisClient(context.Background(), &appconfig.Config{RedisAddr: mr.Addr()}, nil, false)
	l, err = BuildLocker(&appconfig.Config{LockBackend: LockRedis, LockTTL: time.Second}, client)
	require.NoError(t, err)
	assert.IsType(t, &daystore.RedisLocker{}, l)

	_, err = BuildLocker(&appconfig.Config{LockBackend: "etcd"}, nil)
	assert.Error(t, err)
}

func TestBuildBackend(t *testing.T) {
	ctx := context.Background()

	b, err := BuildBackend(ctx, &appconfig.Config{StoreBackend: BackendFS}, t.TempDir(), failingAWS(t))
	require.NoError(t, err)
	assert.IsType(t, &daystore.FSBackend{}, b)

	_, err = BuildBackend(ctx, &appconfig.Config{StoreBackend: BackendS3}, "", failingAWS(t))
	assert.ErrorContains(t, err, "S3_BUCKET")

	loadErr := errors.New("no credentials")
	_, err = BuildBackend(ctx, &appconfig.Config{StoreBackend: BackendS3, S3Bucket: "b"}, "", func(context.Context) (aws.Config, error) {
		return aws.Config{}, loadErr
	})
	assert.ErrorIs(t, err, loadErr)

	b, err = BuildBackend(ctx, &appconfig.Config{StoreBackend: BackendS3, S3Bucket: "b", S3Prefix: "processed", AWSRegion: "us-east-1"}, "", func(context.Context) (aws.Config, error) {
		return aws.Config{Region: "us-east-1"}, nil
	})
	require.NoError(t, err)
	assert.IsType(t, &daystore.S3Backend{}, b)

	_, err = BuildBackend(ctx, &appconfig.Config{StoreBackend: "ftp"}, "", failingAWS(t))
	assert.Error(t, err)
}

func TestBuildStore(t *testing.T) {
	cfg := &appconfig.Config{StoreBackend: BackendFS, LockBackend: LockLocal, DataDir: t.TempDir(), LockTimeout: time.Second}
	store, err := BuildStore(context.Background(), cfg, failingAWS(t), StoreDeps{})
	require.NoError(t, err)

	dates, err := store.Dates(context.Background())
	require.NoError(t, err)
	assert.Empty(t, dates)

	_, err = BuildStore(context.Background(), nil, failingAWS(t), StoreDeps{})
	assert.Error(t, err)
}

func TestOpenAuditDBEmptyURLReturnsNil(t *testing.T) {
	assert.Nil(t, OpenAuditDB(context.Background(), "  ", nil))
}
