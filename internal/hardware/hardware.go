// Package hardware binds the scale and gate abstractions to a driver: GPIO
// pins through periph.io, or an in-process simulator.
package hardware

import (
	"log/slog"

	"github.com/jonboulle/clockwork"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"git.home.luguber.info/inful/feeder/internal/config"
	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
	"git.home.luguber.info/inful/feeder/internal/gate"
	"git.home.luguber.info/inful/feeder/internal/logfields"
	"git.home.luguber.info/inful/feeder/internal/scale"
)

// Devices is an opened scale reader and gate.
type Devices struct {
	Reader scale.RawReader
	Gate   gate.Actuator
	// NeedsTare is false when the driver has no platform drift to absorb.
	NeedsTare bool
	close     func() error
}

// Close releases the pins. It is safe on a zero Devices.
func (d *Devices) Close() error {
	if d == nil || d.close == nil {
		return nil
	}
	return d.close()
}

// Open initializes the configured driver.
func Open(cfg config.HardwareConfig, cal scale.Calibration, clock clockwork.Clock) (*Devices, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	switch cfg.Driver {
	case config.DriverSim:
		slog.Info("Using simulated hardware", logfields.Component("hardware"),
			slog.Float64("initial_kg", cfg.Sim.InitialWeight), slog.Float64("flow_rate", cfg.Sim.FlowRate))
		sim := NewSim(cal, cfg.Sim.InitialWeight, cfg.Sim.FlowRate, clock)
		return &Devices{Reader: sim, Gate: sim}, nil
	case config.DriverPeriph:
		return openPeriph(cfg, clock)
	default:
		return nil, errors.ConfigError("unknown hardware driver").WithContext("driver", string(cfg.Driver)).Build()
	}
}

func openPeriph(cfg config.HardwareConfig, clock clockwork.Clock) (*Devices, error) {
	if _, err := host.Init(); err != nil {
		return nil, errors.ConfigError("failed to initialize GPIO host drivers").WithCause(err).Build()
	}
	data, err := pin(cfg.HX711.DataPin)
	if err != nil {
		return nil, err
	}
	sck, err := pin(cfg.HX711.ClockPin)
	if err != nil {
		return nil, err
	}
	servoPin, err := pin(cfg.Servo.Pin)
	if err != nil {
		return nil, err
	}
	hx, err := NewHX711(data, sck, cfg.HX711.Gain, cfg.HX711.ReadTimeout)
	if err != nil {
		return nil, err
	}
	servo := NewServo(servoPin, cfg.Servo.OpenAngle, cfg.Servo.CloseAngle, cfg.Servo.IdleDelay, clock)
	slog.Info("Opened GPIO hardware", logfields.Component("hardware"),
		slog.String("data", data.Name()), slog.String("clock", sck.Name()), slog.String("servo", servoPin.Name()))
	return &Devices{
		Reader:    hx,
		Gate:      servo,
		NeedsTare: true,
		close: func() error {
			_ = sck.Out(gpio.Low)
			return servoPin.Halt()
		},
	}, nil
}

func pin(name string) (gpio.PinIO, error) {
	p := gpioreg.ByName(name)
	if p == nil {
		return nil, errors.ConfigError("GPIO pin not found").WithContext("pin", name).Build()
	}
	return p, nil
}
