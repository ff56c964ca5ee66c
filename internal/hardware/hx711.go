package hardware

import (
	"context"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// HX711 reads a load cell amplifier by bit-banging its two-wire interface.
type HX711 struct {
	mu      sync.Mutex
	data    gpio.PinIn
	clock   gpio.PinOut
	pulses  int // 25, 26 or 27 clock pulses select the next gain
	timeout time.Duration
}

// gainPulses maps the configured gain to the extra pulses after the 24 data bits.
var gainPulses = map[int]int{128: 1, 64: 3, 32: 2}

// NewHX711 configures data as an input and clock as a low output.
func NewHX711(data gpio.PinIn, clock gpio.PinOut, gain int, timeout time.Duration) (*HX711, error) {
	extra, ok := gainPulses[gain]
	if !ok {
		return nil, errors.ConfigError("unsupported hx711 gain").WithContext("gain", gain).Build()
	}
	if err := data.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return nil, errors.SensorError("failed to configure hx711 data pin").WithCause(err).Build()
	}
	if err := clock.Out(gpio.Low); err != nil {
		return nil, errors.SensorError("failed to configure hx711 clock pin").WithCause(err).Build()
	}
	return &HX711{data: data, clock: clock, pulses: 24 + extra, timeout: timeout}, nil
}

// ReadRaw waits for a conversion and shifts out one signed 24-bit value.
func (h *HX711) ReadRaw(ctx context.Context) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	deadline := time.Now().Add(h.timeout)
	for h.data.Read() == gpio.High {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if time.Now().After(deadline) {
			return 0, errors.SensorError("hx711 not ready").
				WithContext("timeout", h.timeout.String()).Build()
		}
		time.Sleep(time.Millisecond)
	}

	var v uint32
	for i := range h.pulses {
		if err := h.clock.Out(gpio.High); err != nil {
			return 0, errors.SensorError("hx711 clock write failed").WithCause(err).Build()
		}
		if err := h.clock.Out(gpio.Low); err != nil {
			return 0, errors.SensorError("hx711 clock write failed").WithCause(err).Build()
		}
		if i < 24 {
			v <<= 1
			if h.data.Read() == gpio.High {
				v |= 1
			}
		}
	}
	return signExtend24(v), nil
}

func signExtend24(v uint32) int64 {
	if v&0x800000 != 0 {
		v |= 0xFF000000
	}
	return int64(int32(v))
}
