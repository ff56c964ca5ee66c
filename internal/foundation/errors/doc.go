// Package errors provides the classified error primitives used across the feeder.
//
// Every failure that crosses a package boundary is a ClassifiedError carrying a
// category, a severity and a retry strategy. The feed controller inspects the
// category to decide whether a session can continue (sensor glitches are retried)
// or must fault (actuator failures never are). The HTTP and CLI adapters turn the
// same classification into status codes and exit codes.
//
// Example usage:
//
//	err := errors.SensorError("hx711 read timed out").
//		WithContext("pin", "GPIO5").
//		WithCause(readErr).
//		Build()
package errors
