// Package rngx provides the explicit seeded generator handle threaded through
// every stochastic simulation path. Nothing in the engine reads an ambient
// random source; two runs from the same seed draw identical streams.
package rngx

type RNG struct {
	state uint64
}

func New(seed uint64) *RNG {
	return &RNG{state: seed}
}

// Next advances the splitmix64 stream.
func (r *RNG) Next() uint64 {
	r.state += 0x9e3779b97f4a7c15
	z := r.state
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Intn returns a value in [0, n). n <= 0 returns 0.
func (r *RNG) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	return int(r.Next() % uint64(n))
}

// Chance rolls an independent event with probability p in [0,1].
func (r *RNG) Chance(p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	const den = 1 << 53
	return r.Next()>>11 < uint64(p*den)
}

// Jitter returns base shifted by a uniform value in [-spread, +spread].
// The result is clamped to at least 1.
func (r *RNG) Jitter(base, spread int) int {
	if spread <= 0 {
		if base < 1 {
			return 1
		}
		return base
	}
	v := base + r.Intn(2*spread+1) - spread
	if v < 1 {
		return 1
	}
	return v
}

// Fork derives an independent stream, used where a sub-computation must not
// perturb the parent draw sequence.
func (r *RNG) Fork() *RNG {
	return &RNG{state: r.Next() ^ 0xbf58476d1ce4e5b9}
}
