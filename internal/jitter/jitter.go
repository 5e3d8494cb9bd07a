// Package jitter shifts scheduled times by a bounded random offset so posts
// don't land on suspiciously round minutes.
package jitter

import (
	"hash/fnv"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
)

// Bias selects the direction of the offset.
type Bias string

const (
	BiasNone  Bias = "none"
	BiasEarly Bias = "early"
	BiasLate  Bias = "late"
)

// ParseBias accepts "early", "late", "none" or "" (none).
func ParseBias(s string) (Bias, error) {
	switch Bias(strings.ToLower(strings.TrimSpace(s))) {
	case "", BiasNone:
		return BiasNone, nil
	case BiasEarly:
		return BiasEarly, nil
	case BiasLate:
		return BiasLate, nil
	default:
		return BiasNone, errors.Newf("invalid fluctuation bias %q (use early, late or none)", s)
	}
}

// Apply offsets ts by a whole number of minutes drawn uniformly from:
//   - early: [-maxMinutes, 0]
//   - late:  [0, maxMinutes]
//   - none:  [-maxMinutes, maxMinutes]
//
// maxMinutes <= 0 returns ts unchanged. The applied offset is returned too.
// rng may be nil, in which case a fresh per-call source is used.
func Apply(ts time.Time, maxMinutes int, bias Bias, rng *rand.Rand) (time.Time, int) {
	if maxMinutes <= 0 {
		return ts, 0
	}
	if rng == nil {
		rng = NewRand("")
	}
	var offset int
	switch bias {
	case BiasEarly:
		offset = -rng.Intn(maxMinutes + 1)
	case BiasLate:
		offset = rng.Intn(maxMinutes + 1)
	default:
		offset = rng.Intn(2*maxMinutes+1) - maxMinutes
	}
	return ts.Add(time.Duration(offset) * time.Minute), offset
}

var seq uint64

// NewRand returns a source seeded from the clock, a process-wide sequence and tag,
// so two calls in the same nanosecond still diverge.
func NewRand(tag string) *rand.Rand {
	seed := time.Now().UnixNano() ^ int64(atomic.AddUint64(&seq, 1)) ^ int64(fnv64a(tag))
	return rand.New(rand.NewSource(seed))
}

func fnv64a(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}
