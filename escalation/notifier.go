package escalation

import (
	"context"
	"fmt"
	"log"
	"time"

	"emwananchi-core/models"

	"go.mongodb.org/mongo-driver/mongo"
)

// LogNotifier writes escalation events to the process log. Used in
// MEMORY_MODE and as a fallback when no collection is configured.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, ev Event) error {
	log.Printf("ESCALATION tier %d: issue %s stuck in %s for %s (unit %s)",
		ev.Tier, ev.IssueID.Hex(), ev.Status, ev.Overdue.Round(time.Minute), ev.UnitID)
	return nil
}

// MongoNotifier records escalation events as notifications for the
// responsible unit's officials. Delivery channels read this collection.
type MongoNotifier struct {
	coll *mongo.Collection
}

func NewMongoNotifier(db *mongo.Database) *MongoNotifier {
	return &MongoNotifier{coll: db.Collection("notifications")}
}

func (n *MongoNotifier) Notify(ctx context.Context, ev Event) error {
	notification := models.Notification{
		UnitID:  ev.UnitID,
		IssueID: ev.IssueID,
		Verb:    "escalated",
		Detail: fmt.Sprintf("Issue has been in status %q for %s (escalation tier %d)",
			ev.Status, ev.Overdue.Round(time.Hour), ev.Tier),
		CreatedAt: time.Now(),
	}
	_, err := n.coll.InsertOne(ctx, notification)
	return err
}
