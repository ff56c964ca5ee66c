package metrics

import "time"

// SessionOutcome enumerates terminal feed session states for counters.
type SessionOutcome string

const (
	OutcomeCompleted SessionOutcome = "completed"
	OutcomeCancelled SessionOutcome = "cancelled"
	OutcomeFaulted   SessionOutcome = "faulted"
)

// ClassifyResult enumerates what the sensing loop concluded from one frame.
type ClassifyResult string

const (
	ClassifyStarted      ClassifyResult = "started"
	ClassifyAlreadyFed   ClassifyResult = "already_fed"
	ClassifyUnregistered ClassifyResult = "unregistered"
	ClassifyNoMatch      ClassifyResult = "no_match"
	ClassifyError        ClassifyResult = "error"
)

// Recorder defines observability hooks for the feeder. Implementations may
// forward to Prometheus; NoopRecorder is the default when metrics are disabled.
type Recorder interface {
	IncSession(outcome SessionOutcome)
	ObserveSessionDuration(outcome SessionOutcome, d time.Duration)
	ObservePulse(d time.Duration)
	ObserveDispensed(kg float64)
	IncSensorError(source string) // sensing|session|tare
	IncClassification(result ClassifyResult)
	SetWeight(kg float64)
	SetArmed(armed bool)
	SetFeeding(feeding bool)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) IncSession(SessionOutcome)                            {}
func (NoopRecorder) ObserveSessionDuration(SessionOutcome, time.Duration) {}
func (NoopRecorder) ObservePulse(time.Duration)                           {}
func (NoopRecorder) ObserveDispensed(float64)                             {}
func (NoopRecorder) IncSensorError(string)                                {}
func (NoopRecorder) IncClassification(ClassifyResult)                     {}
func (NoopRecorder) SetWeight(float64)                                    {}
func (NoopRecorder) SetArmed(bool)                                        {}
func (NoopRecorder) SetFeeding(bool)                                      {}
