package ai_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sirfifer/voicelearn-ios-sub011/internal/ai"
)

type mapCache struct {
	mu      sync.Mutex
	data    map[string][]float32
	getErr  error
	setErr  error
	setKeys []string
}

func newMapCache() *mapCache { return &mapCache{data: map[string][]float32{}} }

func (c *mapCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *mapCache) Set(_ context.Context, key string, vec []float32) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setKeys = append(c.setKeys, key)
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = vec
	return nil
}

func TestCachedEmbedder_HitAndMiss(t *testing.T) {
	inner := ai.NewMockEmbedder(8)
	cache := newMapCache()
	emb := ai.NewCachedEmbedder(inner, cache, "mock-8")
	ctx := context.Background()

	first, err := emb.Embed(ctx, "angular momentum")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	second, err := emb.Embed(ctx, "angular momentum")
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}

	if inner.Calls() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.Calls())
	}
	if len(cache.setKeys) != 1 || cache.setKeys[0] != ai.CacheKey("mock-8", "angular momentum") {
		t.Errorf("set keys = %v", cache.setKeys)
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("cached vector differs: %v vs %v", first, second)
		}
	}
}

func TestCachedEmbedder_CacheFailuresAreIgnored(t *testing.T) {
	inner := ai.NewMockEmbedder(4)
	cache := newMapCache()
	cache.getErr = errors.New("read timeout")
	cache.setErr = errors.New("write timeout")
	emb := ai.NewCachedEmbedder(inner, cache, "m")

	for range 2 {
		if _, err := emb.Embed(context.Background(), "x"); err != nil {
			t.Fatalf("Embed() error = %v, want nil", err)
		}
	}
	if inner.Calls() != 2 {
		t.Errorf("inner calls = %d, want 2", inner.Calls())
	}
}

func TestCachedEmbedder_InnerErrorNotCached(t *testing.T) {
	want := errors.New("provider down")
	cache := newMapCache()
	emb := ai.NewCachedEmbedder(&ai.MockEmbedder{Err: want}, cache, "m")

	if _, err := emb.Embed(context.Background(), "x"); !errors.Is(err, want) {
		t.Errorf("Embed() error = %v, want %v", err, want)
	}
	if len(cache.setKeys) != 0 {
		t.Errorf("failed embedding was cached: %v", cache.setKeys)
	}
}

func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping redis container test in short mode")
	}

	ctx := context.Background()
	ctr, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForListeningPort("6379/tcp"),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Fatalf("start redis: %v", err)
	}

	url, err := ctr.PortEndpoint(ctx, "6379/tcp", "redis")
	if err != nil {
		t.Fatalf("redis endpoint: %v", err)
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisVectorCache(t *testing.T) {
	client := startRedis(t)
	cache := ai.NewRedisVectorCache(client, time.Hour)
	ctx := context.Background()

	if _, ok, err := cache.Get(ctx, "embed:m:missing"); err != nil || ok {
		t.Fatalf("Get(missing) = ok %v, err %v", ok, err)
	}

	want := []float32{0.25, -3, 1e-6}
	if err := cache.Set(ctx, "embed:m:k", want); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	got, ok, err := cache.Get(ctx, "embed:m:k")
	if err != nil || !ok {
		t.Fatalf("Get() = ok %v, err %v", ok, err)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	ttl, err := client.TTL(ctx, "embed:m:k").Result()
	if err != nil || ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %v, %v", ttl, err)
	}

	if err := client.Set(ctx, "embed:m:corrupt", "abc", 0).Err(); err != nil {
		t.Fatal(err)
	}
	if _, _, err := cache.Get(ctx, "embed:m:corrupt"); err == nil {
		t.Error("Get() should fail on a corrupt blob")
	}
}

func TestCachedEmbedder_Redis(t *testing.T) {
	client := startRedis(t)
	inner := ai.NewMockEmbedder(8)
	emb := ai.NewCachedEmbedder(inner, ai.NewRedisVectorCache(client, 0), "mock-8")
	ctx := context.Background()

	for range 3 {
		if _, err := emb.Embed(ctx, "centripetal force"); err != nil {
			t.Fatalf("Embed() error = %v", err)
		}
	}
	if inner.Calls() != 1 {
		t.Errorf("inner calls = %d, want 1", inner.Calls())
	}
	if n, _ := client.Exists(ctx, ai.CacheKey("mock-8", "centripetal force")).Result(); n != 1 {
		t.Errorf("key exists = %d, want 1", n)
	}
}
