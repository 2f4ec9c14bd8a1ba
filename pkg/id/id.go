package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator hands out ULIDs that sort by the timestamp they were minted for.
// Two generators built with the same seed and fed the same timestamps produce
// the same sequence, which is what backtest replays rely on.
type Generator struct {
	mu   sync.Mutex
	mono io.Reader
	last time.Time
}

// NewGenerator returns a generator whose entropy is derived from seed.
func NewGenerator(seed int64) *Generator {
	return &Generator{
		mono: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
	}
}

// NewRandom returns a generator seeded from crypto/rand.
func NewRandom() *Generator {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return NewGenerator(seed)
}

// At returns a ULID string stamped with t. Timestamps earlier than the last
// one issued are clamped so IDs stay lexicographically increasing, and t
// itself is clamped into the range a ULID can encode.
func (g *Generator) At(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	t = t.UTC()
	switch {
	case t.Before(epoch):
		t = epoch
	case t.After(maxTime):
		t = maxTime
	}
	if t.Before(g.last) {
		t = g.last
	}
	g.last = t

	id, err := ulid.New(ulid.Timestamp(t), g.mono)
	if err != nil {
		// Only reachable when the monotonic entropy overflows within one millisecond.
		panic(err)
	}
	return id.String()
}

var (
	epoch   = time.Unix(0, 0).UTC()
	maxTime = ulid.Time(ulid.MaxTime()).UTC()
)

var (
	defaultOnce sync.Once
	defaultGen  *Generator
)

// New returns a ULID string stamped with the current time.
func New() string {
	defaultOnce.Do(func() { defaultGen = NewRandom() })
	return defaultGen.At(time.Now())
}
