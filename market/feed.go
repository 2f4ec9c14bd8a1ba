package market

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rustyeddy/autotrader/pkg/logging"
)

// Feed subscribes to the collector's websocket stream. Each text message is
// a JSON snapshot or a JSON array of snapshots; every message is published to
// the store as one version.
type Feed struct {
	URL               string
	Store             *Store
	ReconnectInterval time.Duration
	ReadTimeout       time.Duration

	Dialer *websocket.Dialer

	log *zap.Logger
}

func NewFeed(url string, store *Store, log *zap.Logger) *Feed {
	return &Feed{
		URL:               url,
		Store:             store,
		ReconnectInterval: 5 * time.Second,
		ReadTimeout:       90 * time.Second,
		Dialer:            websocket.DefaultDialer,
		log:               logging.OrNop(log).Named("feed"),
	}
}

// Run keeps a connection open until ctx is done, reconnecting after
// ReconnectInterval when the stream drops.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.stream(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("feed disconnected", zap.String("url", f.URL), zap.Error(err))

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.ReconnectInterval):
		}
	}
}

func (f *Feed) stream(ctx context.Context) error {
	conn, _, err := f.Dialer.DialContext(ctx, f.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", f.URL, err)
	}
	defer conn.Close()
	f.log.Info("feed connected", zap.String("url", f.URL))

	// Unblock ReadMessage on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(f.ReadTimeout))
	})

	for {
		if f.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(f.ReadTimeout))
		}
		kind, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if kind != websocket.TextMessage {
			continue
		}
		snaps, err := DecodeSnapshots(msg)
		if err != nil {
			f.log.Warn("bad feed message", zap.Error(err))
			continue
		}
		if len(snaps) > 0 {
			f.Store.Put(snaps...)
		}
	}
}

// DecodeSnapshots parses a single snapshot object or an array of them and
// drops entries that fail validation.
func DecodeSnapshots(msg []byte) ([]Snapshot, error) {
	var raw []Snapshot
	if len(msg) > 0 && msg[0] == '[' {
		if err := json.Unmarshal(msg, &raw); err != nil {
			return nil, err
		}
	} else {
		var one Snapshot
		if err := json.Unmarshal(msg, &one); err != nil {
			return nil, err
		}
		raw = []Snapshot{one}
	}

	out := raw[:0]
	var errs []error
	for _, s := range raw {
		if err := s.Validate(); err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, s)
	}
	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return out, nil
}
