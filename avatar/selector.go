package avatar

import (
	"sort"
	"sync/atomic"
)

// Candidate is one provider the façade may try, in order.
type Candidate struct {
	Entry *Entry
	// Tier is 0 for HEALTHY, 1 for DEGRADED, 2 for an UNHEALTHY provider
	// eligible for a single canary trial.
	Tier int
	// Canary marks a tier-2 candidate; the façade must claim the canary
	// slot before calling it.
	Canary bool
}

// Selector orders providers for a request: capability filter first, then
// health tier, then static weight, then a round-robin rotation so equally
// ranked providers share load.
type Selector struct {
	registry *Registry
	health   *Monitor
	rr       atomic.Uint64
}

// NewSelector creates a Selector over the given registry and monitor.
func NewSelector(registry *Registry, health *Monitor) *Selector {
	return &Selector{registry: registry, health: health}
}

// Candidates returns the ordered providers eligible for the request.
// UNHEALTHY providers mid-cooldown are excluded entirely.
func (s *Selector) Candidates(req *SpeakRequest) []Candidate {
	entries := s.registry.List()
	cands := make([]Candidate, 0, len(entries))
	for _, e := range entries {
		if !e.Descriptor.SupportsLanguage(req.Language) || !e.Descriptor.SupportsEmotion(req.Emotion) {
			continue
		}
		tier, ok := s.health.Tier(e.Descriptor.Name)
		if !ok {
			continue
		}
		cands = append(cands, Candidate{Entry: e, Tier: tier, Canary: tier == 2})
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Tier != cands[j].Tier {
			return cands[i].Tier < cands[j].Tier
		}
		return cands[i].Entry.Descriptor.Weight > cands[j].Entry.Descriptor.Weight
	})

	s.rotateTies(cands)
	return cands
}

// rotateTies rotates each run of equal (tier, weight) candidates by a
// shared counter, distributing load among equally ranked providers.
func (s *Selector) rotateTies(cands []Candidate) {
	shift := int(s.rr.Add(1) - 1)
	for start := 0; start < len(cands); {
		end := start + 1
		for end < len(cands) &&
			cands[end].Tier == cands[start].Tier &&
			cands[end].Entry.Descriptor.Weight == cands[start].Entry.Descriptor.Weight {
			end++
		}
		if n := end - start; n > 1 {
			rotated := make([]Candidate, n)
			for i := 0; i < n; i++ {
				rotated[i] = cands[start+(i+shift)%n]
			}
			copy(cands[start:end], rotated)
		}
		start = end
	}
}
