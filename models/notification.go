package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is an advisory record delivered to officials of the unit
// responsible for an issue, either on escalation or on a status change.
// Actual delivery channels (email, SMS, push) live outside the core.
type Notification struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UnitID    string             `bson:"unitId" json:"unitId"`
	IssueID   primitive.ObjectID `bson:"issueId" json:"issueId"`
	Verb      string             `bson:"verb" json:"verb"`
	Detail    string             `bson:"detail,omitempty" json:"detail,omitempty"`
	Read      bool               `bson:"read" json:"read"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
