package indexstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/internal/features"
	apperrors "github.com/Adithya-Monish-Kumar-K/Malware-Classification-Pipeline/pkg/errors"
)

func sampleIndex(t *testing.T) *features.Index {
	t.Helper()
	return features.BuildIndex([]features.Observation{
		{FileID: "f1", Key: "opcode:mov", Count: 3},
		{FileID: "f1", Key: "opcode:add", Count: 1},
		{FileID: "f2", Key: "segment:text", Count: 2},
	})
}

func TestWriteReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "models", "train.fidx")
	ix := sampleIndex(t)

	require.NoError(t, Write(path, ix))
	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, ix.Keys(), got.Keys())
}

func TestWriteReadEmptyIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.fidx")
	require.NoError(t, Write(path, features.BuildIndex(nil)))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Size())
}

func TestReadDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.fidx")
	require.NoError(t, Write(path, sampleIndex(t)))
	original, err := os.ReadFile(path)
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"bad magic", func(b []byte) []byte { b[0] ^= 0xFF; return b }},
		{"bad version", func(b []byte) []byte { b[4] = 9; return b }},
		{"flipped key byte", func(b []byte) []byte { b[HeaderSize+3] ^= 0x01; return b }},
		{"truncated", func(b []byte) []byte { return b[:len(b)-3] }},
		{"too short", func(b []byte) []byte { return b[:10] }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := make([]byte, len(original))
			copy(data, original)
			corrupt := filepath.Join(t.TempDir(), "corrupt.fidx")
			require.NoError(t, os.WriteFile(corrupt, tt.mutate(data), 0o644))

			_, err := Read(corrupt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, apperrors.ErrCorruptIndex), "got %v", err)
		})
	}
}

type fakeKV struct {
	mu   sync.Mutex
	data map[string]string
	sets int
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: make(map[string]string)}
}

func (f *fakeKV) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (f *fakeKV) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sets++
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	default:
		return errors.New("unsupported value type")
	}
	return nil
}

func (f *fakeKV) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func TestCachePutGet(t *testing.T) {
	kv := newFakeKV()
	cache := NewCache(kv, time.Hour)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.False(t, ok)

	ix := sampleIndex(t)
	require.NoError(t, cache.Put(ctx, "run-1", ix))
	got, ok, err := cache.Get(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ix.Keys(), got.Keys())

	hits, misses := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCacheGetOrLoadLoadsOnce(t *testing.T) {
	kv := newFakeKV()
	cache := NewCache(kv, time.Hour)
	ix := sampleIndex(t)
	var loads atomic.Int32

	for i := 0; i < 3; i++ {
		got, err := cache.GetOrLoad(context.Background(), "run-2", func() (*features.Index, error) {
			loads.Add(1)
			return ix, nil
		})
		require.NoError(t, err)
		assert.Equal(t, ix.Keys(), got.Keys())
	}
	assert.Equal(t, int32(1), loads.Load())
}

func TestCacheGetOrLoadPropagatesError(t *testing.T) {
	cache := NewCache(newFakeKV(), time.Hour)
	boom := errors.New("no index on disk")
	_, err := cache.GetOrLoad(context.Background(), "run-3", func() (*features.Index, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestCacheInvalidate(t *testing.T) {
	kv := newFakeKV()
	cache := NewCache(kv, time.Hour)
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "a", sampleIndex(t)))
	require.NoError(t, cache.Put(ctx, "b", sampleIndex(t)))

	require.NoError(t, cache.Invalidate(ctx))
	_, ok, err := cache.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}
