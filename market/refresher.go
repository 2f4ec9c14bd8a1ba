package market

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/pkg/logging"
)

// Source returns the latest snapshot for a symbol, or ErrNoSnapshot when the
// collector has nothing for it.
type Source interface {
	Snapshot(ctx context.Context, symbol string) (Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, symbol string) (Snapshot, error)

func (f SourceFunc) Snapshot(ctx context.Context, symbol string) (Snapshot, error) {
	return f(ctx, symbol)
}

// Refresher polls a Source on a fixed interval and publishes what it gets
// into a Store. A failed symbol keeps its previous snapshot.
type Refresher struct {
	Source   Source
	Store    *Store
	Symbols  []string
	Interval time.Duration

	log *zap.Logger
}

func NewRefresher(src Source, store *Store, symbols []string, interval time.Duration, log *zap.Logger) *Refresher {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Refresher{
		Source:   src,
		Store:    store,
		Symbols:  symbols,
		Interval: interval,
		log:      logging.OrNop(log).Named("market"),
	}
}

// RefreshOnce fetches every symbol and publishes the successful ones as a
// single new version. It returns the number of snapshots published.
func (r *Refresher) RefreshOnce(ctx context.Context) int {
	var batch []Snapshot
	for _, sym := range r.Symbols {
		if ctx.Err() != nil {
			break
		}
		snap, err := r.Source.Snapshot(ctx, sym)
		if err != nil {
			if errors.Is(err, ErrNoSnapshot) {
				r.log.Debug("no snapshot", zap.String("symbol", sym))
			} else {
				r.log.Warn("snapshot fetch failed", zap.String("symbol", sym), zap.Error(err))
			}
			continue
		}
		if snap.Symbol == "" {
			snap.Symbol = sym
		}
		if err := snap.Validate(); err != nil {
			r.log.Warn("invalid snapshot", zap.String("symbol", sym), zap.Error(err))
			continue
		}
		batch = append(batch, snap)
	}
	if len(batch) == 0 {
		return 0
	}
	v := r.Store.Put(batch...)
	r.log.Debug("snapshots refreshed", zap.Int("count", len(batch)), zap.Uint64("version", v))
	return len(batch)
}

// Run refreshes immediately and then every Interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	r.RefreshOnce(ctx)

	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}
