package hardware

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

const (
	servoFrequency = 50 * physic.Hertz
	servoPeriod    = 20 * time.Millisecond
	servoMinPulse  = 500 * time.Microsecond
	servoMaxPulse  = 2500 * time.Microsecond
)

// Servo drives a hobby servo gate with hardware PWM.
type Servo struct {
	pin        gpio.PinOut
	openAngle  float64
	closeAngle float64
	idleDelay  time.Duration
	clock      clockwork.Clock
}

// NewServo creates a servo gate. Angles are in degrees, 0..180.
func NewServo(pin gpio.PinOut, openAngle, closeAngle float64, idleDelay time.Duration, clock clockwork.Clock) *Servo {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Servo{pin: pin, openAngle: openAngle, closeAngle: closeAngle, idleDelay: idleDelay, clock: clock}
}

func (s *Servo) Open(context.Context) error {
	return s.drive(s.openAngle, "failed to open servo gate")
}

func (s *Servo) Close(context.Context) error {
	return s.drive(s.closeAngle, "failed to close servo gate")
}

// Idle lets the servo finish its travel, then stops the pulse train.
func (s *Servo) Idle(ctx context.Context) error {
	if s.idleDelay > 0 {
		t := s.clock.NewTimer(s.idleDelay)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.Chan():
		}
	}
	if err := s.pin.Out(gpio.Low); err != nil {
		return errors.ActuatorError("failed to idle servo gate").WithCause(err).Build()
	}
	return nil
}

func (s *Servo) drive(angle float64, msg string) error {
	if err := s.pin.PWM(AngleDuty(angle), servoFrequency); err != nil {
		return errors.ActuatorError(msg).WithCause(err).WithContext("angle", angle).Build()
	}
	return nil
}

// AngleDuty converts a servo angle into a 50Hz duty cycle.
func AngleDuty(angle float64) gpio.Duty {
	angle = min(max(angle, 0), 180)
	pulse := servoMinPulse + time.Duration(angle/180*float64(servoMaxPulse-servoMinPulse))
	return gpio.Duty(int64(gpio.DutyMax) * int64(pulse) / int64(servoPeriod))
}
