// Package state holds the record shared by the sensing loop, the feed
// controller and the control surface. All access goes through methods that
// take a single mutex.
package state

import (
	"sync"
	"time"
)

// Operator-facing status texts shared by several writers.
const (
	StatusStandby      = "System standby"
	StatusMonitoring   = "Monitoring..."
	StatusPaused       = "System paused"
	StatusNoReading    = "No weight reading"
	StatusUncalibrated = "Scale not calibrated"
)

// Detection describes the most recent identified subject.
type Detection struct {
	Subject    string // registered name, or Unregistered
	Weight     float64
	Target     float64
	Category   int
	Label      string
	Confidence float64
	At         time.Time
}

// Unregistered is the subject name reported for a confident match without a profile.
const Unregistered = "Unregistered"

// Snapshot is a read-only copy of the shared record plus derived estimates.
type Snapshot struct {
	Running   bool
	Feeding   bool
	Weight    float64
	HasWeight bool
	Degraded  bool
	Status    string
	Detection Detection
	Missing   float64 // kg still missing for the detected target
	Seconds   float64 // estimated open time to cover Missing
}

// Shared is the process-wide state record.
type Shared struct {
	mu        sync.Mutex
	flowRate  float64
	running   bool
	feeding   bool
	weight    float64
	hasWeight bool
	degraded  bool
	status    string
	detection Detection
}

// New creates a disarmed record. flowRate (kg/s) feeds the remaining-time estimate.
func New(flowRate float64) *Shared {
	return &Shared{flowRate: flowRate, status: StatusStandby}
}

func (s *Shared) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

func (s *Shared) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Shared) SetFeeding(feeding bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feeding = feeding
}

func (s *Shared) Feeding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feeding
}

// SetWeight records a successful sample.
func (s *Shared) SetWeight(kg float64, degraded bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weight = kg
	s.hasWeight = true
	s.degraded = degraded
}

// SetNoReading marks the current weight as unavailable. The previous value is
// discarded rather than reported as stale.
func (s *Shared) SetNoReading() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.weight = 0
	s.hasWeight = false
}

// Weight returns the latest weight and whether one is available.
func (s *Shared) Weight() (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.weight, s.hasWeight
}

// Degraded reports whether the latest weight is a raw uncalibrated value.
func (s *Shared) Degraded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasWeight && s.degraded
}

func (s *Shared) SetStatus(status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

func (s *Shared) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Shared) SetDetection(d Detection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detection = d
}

// ClearDetection forgets the detected subject.
func (s *Shared) ClearDetection() {
	s.SetDetection(Detection{})
}

// Disarm clears running and sets the paused status in one step.
func (s *Shared) Disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.status = StatusPaused
}

// Snapshot returns a consistent copy with the missing/seconds projection. The
// estimate is only reported while armed, with a positive target and a live
// reading below it.
func (s *Shared) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		Running:   s.running,
		Feeding:   s.feeding,
		Weight:    s.weight,
		HasWeight: s.hasWeight,
		Degraded:  s.degraded,
		Status:    s.status,
		Detection: s.detection,
	}
	if s.running && s.hasWeight && s.detection.Target > 0 {
		if missing := s.detection.Target - s.weight; missing > 0 {
			snap.Missing = missing
			if s.flowRate > 0 {
				snap.Seconds = missing / s.flowRate
			}
		}
	}
	return snap
}
