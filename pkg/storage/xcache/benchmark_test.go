package xcache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// =============================================================================
// 键构造基准测试
// =============================================================================

func BenchmarkDefaultKeyFunc(b *testing.B) {
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = DefaultKeyFunc("user:12345", "app", 1)
	}
}

func BenchmarkOptions_FullKey(b *testing.B) {
	o := defaultOptions()
	o.keyPrefix = "app"

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = o.fullKey("user:12345", itemOptions{})
	}
}

// =============================================================================
// Redis 基准测试
// =============================================================================

func newBenchRedis(b *testing.B) Cache {
	b.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cache, err := NewRedis(client, WithKeyPrefix("bench"), WithOwnedClient())
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = cache.Close() })

	return cache
}

func BenchmarkRedis_Get(b *testing.B) {
	cache := newBenchRedis(b)
	ctx := context.Background()

	if err := cache.Set(ctx, "benchmark_key", "benchmark_value", NoExpiry); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out string
		if err := cache.Get(ctx, "benchmark_key", &out); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRedis_Set(b *testing.B) {
	cache := newBenchRedis(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := cache.Set(ctx, fmt.Sprintf("key_%d", i), "benchmark_value", time.Hour); err != nil {
			b.Fatal(err)
		}
	}
}

// =============================================================================
// 内存后端基准测试
// =============================================================================

func newBenchMemory(b *testing.B) Cache {
	b.Helper()

	cache, err := NewMemory()
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = cache.Close() })

	return cache
}

func BenchmarkMemory_Get(b *testing.B) {
	cache := newBenchMemory(b)
	ctx := context.Background()

	if err := cache.Set(ctx, "benchmark_key", "benchmark_value", NoExpiry); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var out string
		if err := cache.Get(ctx, "benchmark_key", &out); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemory_Set(b *testing.B) {
	cache := newBenchMemory(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := cache.Set(ctx, fmt.Sprintf("key_%d", i%1000), "benchmark_value", time.Hour); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkMemory_Get_Parallel(b *testing.B) {
	cache := newBenchMemory(b)
	ctx := context.Background()

	for i := range 100 {
		if err := cache.Set(ctx, fmt.Sprintf("key_%d", i), "value", NoExpiry); err != nil {
			b.Fatal(err)
		}
	}

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			var out string
			_ = cache.Get(ctx, fmt.Sprintf("key_%d", i%100), &out)
			i++
		}
	})
}

// =============================================================================
// GetOrLoad 基准测试
// =============================================================================

func BenchmarkGetOrLoad_CacheHit(b *testing.B) {
	cache := newBenchMemory(b)
	ctx := context.Background()

	load := func(ctx context.Context) (any, error) {
		return "loaded", nil
	}
	var out string
	if err := cache.GetOrLoad(ctx, "benchmark_key", &out, NoExpiry, load); err != nil {
		b.Fatal(err)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var v string
		if err := cache.GetOrLoad(ctx, "benchmark_key", &v, NoExpiry, load); err != nil {
			b.Fatal(err)
		}
	}
}
