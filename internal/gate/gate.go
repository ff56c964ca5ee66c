// Package gate defines the dispensing actuator and the scoped open/close discipline.
package gate

import (
	"context"
	stderrors "errors"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// Actuator is a binary dispensing gate. Idle depowers the drive so it does
// not hold torque or jitter while parked.
type Actuator interface {
	Open(ctx context.Context) error
	Close(ctx context.Context) error
	Idle(ctx context.Context) error
}

// Release closes the gate and then idles it. Idle is attempted even if Close
// fails, and both run on a context that ignores cancellation of ctx.
func Release(ctx context.Context, a Actuator) error {
	ctx = context.WithoutCancel(ctx)
	closeErr := classify(a.Close(ctx), "failed to close gate")
	idleErr := classify(a.Idle(ctx), "failed to idle gate")
	return stderrors.Join(closeErr, idleErr)
}

// Pulse opens the gate, runs hold, and releases the gate on every exit path.
// hold's error is returned as-is; actuator failures are ActuatorErrors.
func Pulse(ctx context.Context, a Actuator, hold func() error) (err error) {
	if openErr := a.Open(ctx); openErr != nil {
		return stderrors.Join(classify(openErr, "failed to open gate"), Release(ctx, a))
	}
	defer func() {
		if relErr := Release(ctx, a); relErr != nil {
			err = stderrors.Join(err, relErr)
		}
	}()
	return hold()
}

func classify(err error, message string) error {
	if err == nil {
		return nil
	}
	if errors.HasCategory(err, errors.CategoryActuator) {
		return err
	}
	return errors.ActuatorError(message).WithCause(err).Build()
}
