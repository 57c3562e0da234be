package lifecycle

import (
	"context"

	"emwananchi-core/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// MongoAuthorizer answers authorization checks from the users collection:
// admins act for any unit, officials only for their own, citizens for none.
type MongoAuthorizer struct {
	users *mongo.Collection
}

func NewMongoAuthorizer(db *mongo.Database) *MongoAuthorizer {
	return &MongoAuthorizer{users: db.Collection("users")}
}

func (a *MongoAuthorizer) Authorize(ctx context.Context, actorID primitive.ObjectID, unitID string, action string) (bool, error) {
	var user models.User
	err := a.users.FindOne(ctx, bson.M{"_id": actorID}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	switch user.Role {
	case models.RoleAdmin:
		return true, nil
	case models.RoleOfficial:
		return user.UnitID == unitID, nil
	}
	return false, nil
}

// StaticAuthorizer is a fixed actor-to-unit table, used by tests and
// MEMORY_MODE runs.
type StaticAuthorizer struct {
	// Units maps an actor to the unit it may act for; "*" allows any unit.
	Units map[primitive.ObjectID]string
}

func (a *StaticAuthorizer) Authorize(ctx context.Context, actorID primitive.ObjectID, unitID string, action string) (bool, error) {
	unit, ok := a.Units[actorID]
	if !ok {
		return false, nil
	}
	return unit == "*" || unit == unitID, nil
}
