// Package helpers provides test doubles shared by the feeder's package tests.
package helpers
