package market

import (
	"sort"
	"sync"
	"sync/atomic"
)

// View is an immutable set of snapshots at one store version. Readers may
// keep a View for as long as they like; updates never modify it.
type View struct {
	Version   uint64
	snapshots map[string]Snapshot
}

func (v *View) Get(symbol string) (Snapshot, bool) {
	if v == nil {
		return Snapshot{}, false
	}
	s, ok := v.snapshots[symbol]
	return s, ok
}

func (v *View) Len() int {
	if v == nil {
		return 0
	}
	return len(v.snapshots)
}

// Snapshots returns the snapshots for symbols in the given order, skipping
// symbols with no data. With no symbols it returns all, sorted by symbol.
func (v *View) Snapshots(symbols ...string) []Snapshot {
	if v == nil {
		return nil
	}
	if len(symbols) == 0 {
		out := make([]Snapshot, 0, len(v.snapshots))
		for _, s := range v.snapshots {
			out = append(out, s)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
		return out
	}
	out := make([]Snapshot, 0, len(symbols))
	for _, sym := range symbols {
		if s, ok := v.snapshots[sym]; ok {
			out = append(out, s)
		}
	}
	return out
}

// Store is a copy-on-write snapshot table. Writers are serialized and publish
// a whole new View; readers load the current View without locking.
type Store struct {
	mu   sync.Mutex
	view atomic.Pointer[View]
}

func NewStore() *Store {
	s := &Store{}
	s.view.Store(&View{snapshots: map[string]Snapshot{}})
	return s
}

// View returns the current consistent view.
func (s *Store) View() *View {
	return s.view.Load()
}

// Put publishes snaps on top of the current view and returns the new version.
func (s *Store) Put(snaps ...Snapshot) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur := s.view.Load()
	next := make(map[string]Snapshot, len(cur.snapshots)+len(snaps))
	for k, v := range cur.snapshots {
		next[k] = v
	}
	for _, snap := range snaps {
		next[snap.Symbol] = snap
	}
	v := &View{Version: cur.Version + 1, snapshots: next}
	s.view.Store(v)
	return v.Version
}
