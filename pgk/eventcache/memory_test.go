package eventcache

import (
	"context"
	"sync"
	"testing"

	"github.com/nbd-wtf/go-nostr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func profile(id, pubkey string, createdAt int64) *nostr.Event {
	return &nostr.Event{ID: id, PubKey: pubkey, Kind: 0, CreatedAt: nostr.Timestamp(createdAt), Tags: nostr.Tags{}}
}

func TestMemoryInsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	evt := profile("aa", "pk1", 100)
	require.NoError(t, cache.Insert(ctx, evt))
	require.NoError(t, cache.Insert(ctx, evt))

	res, err := cache.Query(ctx, nostr.Filters{{Kinds: []int{0}, Authors: []string{"pk1"}}})
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Equal(t, "aa", res[0].ID)
}

func TestMemoryQueryMatchesFilter(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	require.NoError(t, cache.Insert(ctx, profile("a1", "pk1", 100)))
	require.NoError(t, cache.Insert(ctx, profile("a2", "pk1", 200)))
	require.NoError(t, cache.Insert(ctx, profile("b1", "pk2", 150)))
	require.NoError(t, cache.Insert(ctx, &nostr.Event{ID: "c1", PubKey: "pk1", Kind: 3, CreatedAt: 300}))

	res, err := cache.Query(ctx, nostr.Filters{{Kinds: []int{0}, Authors: []string{"pk1"}}})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "a2", res[0].ID)
	assert.Equal(t, "a1", res[1].ID)

	res, err = cache.Query(ctx, nostr.Filters{{Kinds: []int{0}, Authors: []string{"pk1"}, Limit: 1}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "a2", res[0].ID)

	res, err = cache.Query(ctx, nostr.Filters{{Kinds: []int{0}}, {Kinds: []int{0, 3}, Authors: []string{"pk1"}}})
	require.NoError(t, err)
	assert.Len(t, res, 4)
}

func TestMemoryInsertedCopyIsDetached(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	evt := profile("aa", "pk1", 100)
	require.NoError(t, cache.Insert(ctx, evt))
	evt.Content = "mutated"

	res, err := cache.Query(ctx, nostr.Filters{{IDs: []string{"aa"}}})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "", res[0].Content)
}

func TestMemoryConcurrentInsertSameID(t *testing.T) {
	ctx := context.Background()
	cache := NewMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cache.Insert(ctx, profile("same", "pk1", 100))
		}()
	}
	wg.Wait()

	res, err := cache.Query(ctx, nostr.Filters{{Kinds: []int{0}}})
	require.NoError(t, err)
	assert.Len(t, res, 1)
}

func TestMemoryQueryCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewMemory().Query(ctx, nostr.Filters{{Kinds: []int{0}}})
	assert.ErrorIs(t, err, context.Canceled)
}
