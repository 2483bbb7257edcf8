package scheduler

import (
	"crypto/rand"
	"math/big"
	"time"
)

// randFraction samples a uniform float64 in [0, 1) using crypto/rand. A
// deterministic 0.5 midpoint is substituted if the system CSPRNG is
// unavailable, so a cadence tick never blocks on entropy starvation.
func randFraction() float64 {
	limit := new(big.Int).Lsh(big.NewInt(1), 53) // 2^53
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / float64(int64(1)<<53)
}

// jitteredInterval applies ±pct jitter to d: u is sampled uniformly in
// [-pct, +pct] and the result is d * (1 + u).
func jitteredInterval(d time.Duration, pct float64) time.Duration {
	u := (randFraction() - 0.5) * 2 * pct
	return time.Duration(float64(d) * (1 + u))
}
