package models

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrValidation marks a submission the caller can fix and retry.
var ErrValidation = errors.New("validation error")

// ReportCategory enum
type ReportCategory string

const (
	Roads     ReportCategory = "roads"
	Lighting  ReportCategory = "lighting"
	Water     ReportCategory = "water"
	Health    ReportCategory = "health"
	Education ReportCategory = "education"
	Other     ReportCategory = "other"
)

// ValidCategory reports whether c is one of the known report categories.
func ValidCategory(c ReportCategory) bool {
	switch c {
	case Roads, Lighting, Water, Health, Education, Other:
		return true
	}
	return false
}

// GeoPoint is a WGS84 coordinate pair.
type GeoPoint struct {
	Latitude  float64 `bson:"latitude" json:"latitude"`
	Longitude float64 `bson:"longitude" json:"longitude"`
}

// Report is a single citizen submission describing a problem. A Report is
// immutable once stored except for its Issue back-reference, which is set
// exactly once when the aggregator assigns it to an Issue.
type Report struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SubmittedBy primitive.ObjectID `bson:"submittedBy" json:"submittedBy"`
	Category    ReportCategory     `bson:"category" json:"category"`
	Description string             `bson:"description" json:"description"`
	Location    GeoPoint           `bson:"location" json:"location"`
	MediaRef    *string            `bson:"mediaRef,omitempty" json:"mediaRef,omitempty"`
	IssueID     primitive.ObjectID `bson:"issueId,omitempty" json:"issueId,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// Validate checks the submission invariants before the report is persisted.
func (r *Report) Validate() error {
	if !ValidCategory(r.Category) {
		return fmt.Errorf("%w: unknown category %q", ErrValidation, r.Category)
	}
	if r.Description == "" {
		return fmt.Errorf("%w: description must not be empty", ErrValidation)
	}
	if r.Location.Latitude < -90 || r.Location.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of bounds", ErrValidation, r.Location.Latitude)
	}
	if r.Location.Longitude < -180 || r.Location.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of bounds", ErrValidation, r.Location.Longitude)
	}
	return nil
}
