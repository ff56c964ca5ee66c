// Package profile stores registered subjects keyed by classifier category.
package profile

import (
	"context"
	"math"
	"strings"
	"time"

	"git.home.luguber.info/inful/feeder/internal/foundation/errors"
)

// Profile is a registered subject.
type Profile struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Weight    float64   `json:"weight"`      // body weight, kg
	Target    float64   `json:"target_feed"` // portion, kg
	Category  int       `json:"breed_id"`
	Breed     string    `json:"breed_name"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Registration is the input to Save.
type Registration struct {
	Name     string
	Weight   float64
	Category int
	Breed    string
}

// Store looks up and manages profiles.
type Store interface {
	Lookup(ctx context.Context, category int) (Profile, bool, error)
	List(ctx context.Context) ([]Profile, error)
	Save(ctx context.Context, r Registration) (Profile, error)
	Delete(ctx context.Context, category int) error
	Close() error
}

// TargetFor returns the portion for a body weight, rounded to grams.
func TargetFor(weight, ratio float64) float64 {
	return math.Round(weight*ratio*1000) / 1000
}

// Validate normalizes r and reports the first invalid field.
func (r *Registration) Validate() error {
	r.Name = strings.TrimSpace(r.Name)
	r.Breed = strings.TrimSpace(r.Breed)
	switch {
	case r.Name == "":
		return errors.ValidationError("name is required").WithContext("field", "name").Build()
	case math.IsNaN(r.Weight) || math.IsInf(r.Weight, 0) || r.Weight <= 0:
		return errors.ValidationError("weight must be a positive number").
			WithContext("field", "weight").WithContext("value", r.Weight).Build()
	case r.Category < 0:
		return errors.ValidationError("breed id must not be negative").
			WithContext("field", "breed_id").WithContext("value", r.Category).Build()
	}
	return nil
}
