// Package classifier identifies the subject in a frame through a remote
// image classification service.
package classifier

import (
	"context"

	"git.home.luguber.info/inful/feeder/internal/camera"
	"git.home.luguber.info/inful/feeder/internal/config"
)

// Result is the top prediction for a frame.
type Result struct {
	CategoryID int     `json:"class_id"`
	Confidence float64 `json:"confidence"`
	Label      string  `json:"label,omitempty"`
}

// Classifier maps a frame to its most likely category.
type Classifier interface {
	Classify(ctx context.Context, f camera.Frame) (Result, error)
}

// Range is the acceptance rule for a prediction: a category inside
// [Min, Max] with confidence strictly above Threshold.
type Range struct {
	Min       int
	Max       int
	Threshold float64
}

// RangeFromConfig builds the acceptance rule.
func RangeFromConfig(c config.ClassifierConfig) Range {
	return Range{Min: c.MinCategory, Max: c.MaxCategory, Threshold: c.Threshold}
}

// Contains reports whether id is an accepted category.
func (r Range) Contains(id int) bool {
	return id >= r.Min && id <= r.Max
}

// Accept reports whether res is a confident in-range match.
func (r Range) Accept(res Result) bool {
	return r.Contains(res.CategoryID) && res.Confidence > r.Threshold
}
