package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// IssueStatus enum
type IssueStatus string

const (
	Reported     IssueStatus = "reported"
	Acknowledged IssueStatus = "acknowledged"
	InProgress   IssueStatus = "in_progress"
	Resolved     IssueStatus = "resolved"
	Rejected     IssueStatus = "rejected"
)

// Terminal reports whether s permits no further transitions.
func (s IssueStatus) Terminal() bool {
	return s == Resolved || s == Rejected
}

// ValidStatus reports whether s is one of the known issue statuses.
func ValidStatus(s IssueStatus) bool {
	switch s {
	case Reported, Acknowledged, InProgress, Resolved, Rejected:
		return true
	}
	return false
}

// StatusEvent is one append-only audit entry in an Issue's history.
// Never mutated after creation.
type StatusEvent struct {
	From      IssueStatus        `bson:"from" json:"from"`
	To        IssueStatus        `bson:"to" json:"to"`
	Actor     primitive.ObjectID `bson:"actor" json:"actor"`
	Note      string             `bson:"note,omitempty" json:"note,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Issue is the deduplicated, government-facing unit of work derived from
// one or more reports. Invariants: at least one member report at all times,
// the centroid is the running average of member locations, the event history
// is append-only, and terminal statuses are final.
type Issue struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Category       ReportCategory       `bson:"category" json:"category"`
	Centroid       GeoPoint             `bson:"centroid" json:"centroid"`
	Status         IssueStatus          `bson:"status" json:"status"`
	UnitID         string               `bson:"unitId" json:"unitId"`
	Members        []primitive.ObjectID `bson:"members" json:"members"`
	Events         []StatusEvent        `bson:"events" json:"events"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
	LastTransition time.Time            `bson:"lastTransition" json:"lastTransition"`
}

// HasMember reports whether the report is already part of the issue.
func (i *Issue) HasMember(reportID primitive.ObjectID) bool {
	for _, m := range i.Members {
		if m == reportID {
			return true
		}
	}
	return false
}
