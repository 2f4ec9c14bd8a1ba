package market

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(sym string, price float64) Snapshot {
	return Snapshot{Symbol: sym, Price: price, Time: time.Unix(1700000000, 0).UTC()}
}

func TestStoreVersionsAreImmutable(t *testing.T) {
	t.Parallel()

	s := NewStore()
	v0 := s.View()
	assert.Equal(t, uint64(0), v0.Version)
	assert.Equal(t, 0, v0.Len())

	assert.Equal(t, uint64(1), s.Put(snap("BTC/USDT", 50000), snap("ETH/USDT", 3000)))
	v1 := s.View()

	assert.Equal(t, uint64(2), s.Put(snap("BTC/USDT", 51000)))
	v2 := s.View()

	got, ok := v1.Get("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, 50000.0, got.Price)

	got, ok = v2.Get("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, 51000.0, got.Price)

	// Untouched symbols carry forward.
	_, ok = v2.Get("ETH/USDT")
	assert.True(t, ok)
	_, ok = v0.Get("ETH/USDT")
	assert.False(t, ok)
}

func TestViewSnapshotsOrder(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.Put(snap("SOL/USDT", 100), snap("BTC/USDT", 50000), snap("ETH/USDT", 3000))
	v := s.View()

	var syms []string
	for _, sn := range v.Snapshots() {
		syms = append(syms, sn.Symbol)
	}
	assert.Equal(t, []string{"BTC/USDT", "ETH/USDT", "SOL/USDT"}, syms)

	syms = nil
	for _, sn := range v.Snapshots("SOL/USDT", "DOGE/USDT", "BTC/USDT") {
		syms = append(syms, sn.Symbol)
	}
	assert.Equal(t, []string{"SOL/USDT", "BTC/USDT"}, syms)

	var nilView *View
	assert.Nil(t, nilView.Snapshots())
}

func TestStoreConcurrentReadersSeeWholeVersions(t *testing.T) {
	t.Parallel()

	s := NewStore()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 1; i <= 200; i++ {
			p := float64(i)
			s.Put(snap("A", p), snap("B", p))
		}
	}()

	for i := 0; i < 200; i++ {
		v := s.View()
		a, okA := v.Get("A")
		b, okB := v.Get("B")
		require.Equal(t, okA, okB)
		require.Equal(t, a.Price, b.Price)
	}
	wg.Wait()
	assert.Equal(t, uint64(200), s.View().Version)
}

func TestRefresherPublishesOneVersion(t *testing.T) {
	t.Parallel()

	src := SourceFunc(func(ctx context.Context, symbol string) (Snapshot, error) {
		switch symbol {
		case "BTC/USDT":
			return Snapshot{Price: 50000}, nil
		case "BAD/USDT":
			return Snapshot{}, errors.New("timeout")
		default:
			return Snapshot{}, ErrNoSnapshot
		}
	})

	store := NewStore()
	r := NewRefresher(src, store, []string{"BTC/USDT", "BAD/USDT", "NONE/USDT"}, time.Second, nil)

	assert.Equal(t, 1, r.RefreshOnce(context.Background()))
	v := store.View()
	assert.Equal(t, uint64(1), v.Version)

	got, ok := v.Get("BTC/USDT")
	require.True(t, ok)
	assert.Equal(t, "BTC/USDT", got.Symbol)

	// Nothing valid means no new version.
	r.Symbols = []string{"BAD/USDT"}
	assert.Equal(t, 0, r.RefreshOnce(context.Background()))
	assert.Equal(t, uint64(1), store.View().Version)
}

func TestRefresherRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	src := SourceFunc(func(ctx context.Context, symbol string) (Snapshot, error) {
		return Snapshot{Price: 1}, nil
	})
	store := NewStore()
	r := NewRefresher(src, store, []string{"X"}, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return store.View().Version >= 2 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}
