// Package diag accumulates non-fatal per-subdomain Schwarz rel_diff
// samples into a running mean/max and prints an end-of-run summary,
// grounded on gofem's fem.Summary end-of-run reporting collaborator.
package diag

import "sync"

// Profile tracks the running mean and max of a stream of rel_diff
// samples for one subdomain.
type Profile struct {
	n        int
	sum, max float64
}

// Observe records one rel_diff sample.
func (p *Profile) Observe(v float64) {
	p.n++
	p.sum += v
	if v > p.max {
		p.max = v
	}
}

// Mean returns the running mean, or 0 if no samples were observed.
func (p *Profile) Mean() float64 {
	if p.n == 0 {
		return 0
	}
	return p.sum / float64(p.n)
}

// Max returns the largest sample observed.
func (p *Profile) Max() float64 { return p.max }

// Count returns the number of samples observed.
func (p *Profile) Count() int { return p.n }

// Summary aggregates a Profile per subdomain, safe for concurrent
// Observe calls from different subdomains' goroutines.
type Summary struct {
	mu       sync.Mutex
	profiles map[[2]int]*Profile
}

// NewSummary allocates an empty run summary.
func NewSummary() *Summary {
	return &Summary{profiles: make(map[[2]int]*Profile)}
}

// Observe records one rel_diff sample for the subdomain at (sx, sy).
func (s *Summary) Observe(sx, sy int, relDiff float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := [2]int{sx, sy}
	p, ok := s.profiles[key]
	if !ok {
		p = &Profile{}
		s.profiles[key] = p
	}
	p.Observe(relDiff)
}

// WorstMean returns the subdomain index and mean rel_diff of whichever
// subdomain had the largest mean rel_diff over the run.
func (s *Summary) WorstMean() (sx, sy int, mean float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, p := range s.profiles {
		if m := p.Mean(); m > mean {
			sx, sy, mean = k[0], k[1], m
		}
	}
	return
}
