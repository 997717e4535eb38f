package cache

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"

	"github.com/IliaW/page-capture/config"
	"github.com/IliaW/page-capture/internal"
	"github.com/bradfitz/gomemcache/memcache"
)

// CachedClient remembers which artifact keys are already stored, so repeat
// requests can skip the S3 HeadObject round trip.
type CachedClient interface {
	IsCaptured(string) bool
	SaveCaptured(key string, force bool)
	Close()
}

type MemcachedClient struct {
	client *memcache.Client
	cfg    *config.CacheConfig
}

func NewMemcachedClient(cacheConfig *config.CacheConfig) *MemcachedClient {
	slog.Info("connecting to memcached...")
	ss := new(memcache.ServerList)
	err := ss.SetServers(cacheConfig.Servers...)
	if err != nil {
		slog.Error("failed to set memcached servers.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	c := &MemcachedClient{
		client: memcache.NewFromSelector(ss),
		cfg:    cacheConfig,
	}
	slog.Info("pinging the memcached.")
	err = c.client.Ping()
	if err != nil {
		slog.Error("connection to the memcached is failed.", slog.String("err", err.Error()))
		os.Exit(1)
	}
	slog.Info("connected to memcached!")

	return c
}

func (mc *MemcachedClient) IsCaptured(key string) bool {
	_, err := mc.client.Get(cacheKey(key))
	if err != nil {
		if !errors.Is(err, memcache.ErrCacheMiss) {
			slog.Warn("failed to read from cache.", slog.String("key", key), slog.String("err", err.Error()))
		}
		return false
	}
	slog.Debug("cache hit.", slog.String("key", key))

	return true
}

// SaveCaptured marks key as stored. Forced captures get a short ttl so a
// burst of forced requests does not pin the entry.
func (mc *MemcachedClient) SaveCaptured(key string, force bool) {
	ttl := mc.cfg.Ttl
	if force && mc.cfg.ForcedTtl > 0 {
		ttl = mc.cfg.ForcedTtl
	}

	if err := mc.set(cacheKey(key), "1", int32((ttl).Seconds())); err != nil {
		slog.Error("failed to save s3 key to cache.", slog.String("key", key),
			slog.String("err", err.Error()))
		return
	}
	slog.Debug("s3 key saved to cache.", slog.String("key", key), slog.Duration("ttl", ttl))
}

func (mc *MemcachedClient) Close() {
	slog.Info("closing memcached connection.")
	err := mc.client.Close()
	if err != nil {
		slog.Error("failed to close memcached connection.", slog.String("err", err.Error()))
	}
}

func (mc *MemcachedClient) set(key string, value any, expiration int32) error {
	byteValue, err := json.Marshal(value)
	if err != nil {
		return err
	}
	item := &memcache.Item{
		Key:        key,
		Value:      byteValue,
		Expiration: expiration,
	}

	return mc.client.Set(item)
}

// memcached keys are limited to 250 bytes without spaces; s3 keys are not.
func cacheKey(s3Key string) string {
	return internal.HashURL(s3Key) + "-captured"
}

// NoopClient is used when the cache is disabled.
type NoopClient struct{}

func (NoopClient) IsCaptured(string) bool { return false }
func (NoopClient) SaveCaptured(string, bool) {}
func (NoopClient) Close() {}

var _ CachedClient = (*MemcachedClient)(nil)
var _ CachedClient = NoopClient{}
