package helpers

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/feeder/internal/scale"
)

// Reading is one scripted sampler result.
type Reading struct {
	Weight   float64
	Degraded bool
	Err      error
}

// ScriptedSampler returns scripted readings in order and repeats the last one
// once the script is exhausted.
type ScriptedSampler struct {
	mu       sync.Mutex
	readings []Reading
	counts   []int
}

// NewScriptedSampler creates a sampler from weights.
func NewScriptedSampler(weights ...float64) *ScriptedSampler {
	s := &ScriptedSampler{}
	for _, w := range weights {
		s.readings = append(s.readings, Reading{Weight: w})
	}
	return s
}

// Push appends readings to the script.
func (s *ScriptedSampler) Push(r ...Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r...)
}

func (s *ScriptedSampler) Sample(_ context.Context, n int) (scale.Sample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts = append(s.counts, n)
	if len(s.readings) == 0 {
		return scale.Sample{Count: n}, nil
	}
	r := s.readings[0]
	if len(s.readings) > 1 {
		s.readings = s.readings[1:]
	}
	if r.Err != nil {
		return scale.Sample{}, r.Err
	}
	return scale.Sample{Weight: r.Weight, Count: n, Degraded: r.Degraded}, nil
}

// Counts returns the n passed to each Sample call.
func (s *ScriptedSampler) Counts() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, len(s.counts))
	copy(out, s.counts)
	return out
}
