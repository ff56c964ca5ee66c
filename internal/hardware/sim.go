package hardware

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/feeder/internal/scale"
)

// Sim is a coupled scale and gate. Food accumulates at the flow rate while
// the gate is open, and the scale reports it as raw counts through the
// configured calibration.
type Sim struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	cal      scale.Calibration
	flowRate float64
	food     float64
	open     bool
	openedAt time.Time
	opens    int
}

// NewSim creates a simulator holding initial kg of food in the bowl.
func NewSim(cal scale.Calibration, initial, flowRate float64, clock clockwork.Clock) *Sim {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sim{clock: clock, cal: cal, flowRate: flowRate, food: initial}
}

// Food returns the kg currently in the bowl.
func (s *Sim) Food() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.foodLocked()
}

// SetFood replaces the bowl contents, e.g. after an animal has eaten.
func (s *Sim) SetFood(kg float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.food = kg
	if s.open {
		s.openedAt = s.clock.Now()
	}
}

// Opens returns how many times the gate was opened.
func (s *Sim) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

func (s *Sim) foodLocked() float64 {
	if !s.open {
		return s.food
	}
	return s.food + s.flowRate*s.clock.Since(s.openedAt).Seconds()
}

func (s *Sim) ReadRaw(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	load := s.cal.ContainerOffset + s.foodLocked()
	return int64(math.Round(s.cal.ZeroOffset + load*s.cal.ReferenceFactor)), nil
}

func (s *Sim) Open(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		s.open = true
		s.openedAt = s.clock.Now()
		s.opens++
	}
	return nil
}

func (s *Sim) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open {
		s.food = s.foodLocked()
		s.open = false
	}
	return nil
}

func (s *Sim) Idle(context.Context) error { return nil }
