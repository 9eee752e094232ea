package ai

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/blake2b"
)

// VectorCache stores embeddings by key.
type VectorCache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vec []float32) error
}

// RedisVectorCache keeps vectors in Redis/Dragonfly as little-endian float32 blobs.
type RedisVectorCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisVectorCache creates a cache on client. A zero ttl keeps entries forever.
func NewRedisVectorCache(client *redis.Client, ttl time.Duration) *RedisVectorCache {
	return &RedisVectorCache{client: client, ttl: ttl}
}

func (c *RedisVectorCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	b, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	v, err := decodeVector(b)
	if err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, true, nil
}

func (c *RedisVectorCache) Set(ctx context.Context, key string, vec []float32) error {
	if err := c.client.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func encodeVector(v []float32) []byte {
	b := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(f))
	}
	return b
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector blob length %d is not a multiple of 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

// CacheKey returns the cache key for text embedded with model.
func CacheKey(model, text string) string {
	sum := blake2b.Sum256([]byte(text))
	return "embed:" + model + ":" + hex.EncodeToString(sum[:])
}

// CachedEmbedder serves embeddings from a cache and fills it on miss.
// Cache failures are logged and never fail the embedding.
type CachedEmbedder struct {
	next  Embedder
	cache VectorCache
	model string
}

// NewCachedEmbedder wraps next. model namespaces the keys so switching models never
// returns stale vectors.
func NewCachedEmbedder(next Embedder, cache VectorCache, model string) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := CacheKey(e.model, text)

	v, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		slog.Warn("embedding cache read failed", "error", err)
	}
	if ok {
		slog.Debug("embedding cache hit", "key", key)
		return v, nil
	}

	v, err = e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Set(ctx, key, v); err != nil {
		slog.Warn("embedding cache write failed", "error", err)
	}
	return v, nil
}
