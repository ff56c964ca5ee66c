// Package feed implements the closed-loop dispensing controller.
//
// A session moves through Idle, Dispensing and Settling until it reaches one
// of the terminal states Completed, Cancelled or Faulted:
//
//	Idle -> Dispensing -> Settling -> Dispensing -> ... -> Completed
//	                 \            \-> Cancelled
//	                  \-> Cancelled | Faulted
//
// Each Dispensing step samples the scale, converts the missing weight into a
// gate open time at the configured flow rate (clamped to [MinPulse, MaxPulse])
// and pulses the gate. Settling lets airborne feed land before the next
// sample. Both waits poll the cancellation source every PollInterval.
//
// Only one session exists at a time. The slot is an atomic pointer taken by
// compare-and-set in TryStart and released after the post-session cooldown.
package feed
