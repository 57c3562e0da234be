package store

import (
	"context"
	"time"

	"emwananchi-core/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoReportStore keeps reports in the "reports" collection.
type MongoReportStore struct {
	coll *mongo.Collection
}

func NewMongoReportStore(db *mongo.Database) *MongoReportStore {
	return &MongoReportStore{coll: db.Collection("reports")}
}

// EnsureReportIndexes creates the lookup indexes the store relies on.
func EnsureReportIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := db.Collection("reports").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "issueId", Value: 1}}},
		{Keys: bson.D{{Key: "submittedBy", Value: 1}}},
	})
	return err
}

func (s *MongoReportStore) Submit(ctx context.Context, r *models.Report) (primitive.ObjectID, error) {
	if err := r.Validate(); err != nil {
		return primitive.NilObjectID, err
	}

	r.ID = primitive.NewObjectID()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	if _, err := s.coll.InsertOne(ctx, r); err != nil {
		return primitive.NilObjectID, err
	}
	return r.ID, nil
}

func (s *MongoReportStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Report, error) {
	var r models.Report
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&r)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *MongoReportStore) LinkToIssue(ctx context.Context, reportID, issueID primitive.ObjectID) error {
	// Only link an unlinked report or re-link to the same issue.
	res, err := s.coll.UpdateOne(ctx,
		bson.M{"_id": reportID, "issueId": bson.M{"$in": bson.A{nil, primitive.NilObjectID, issueID}}},
		bson.M{"$set": bson.M{"issueId": issueID}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Either the report is missing or it belongs to a different issue.
		if _, err := s.Get(ctx, reportID); err != nil {
			return err
		}
		return ErrAlreadyLinked
	}
	return nil
}

func (s *MongoReportStore) ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Report, error) {
	cursor, err := s.coll.Find(ctx, bson.M{"issueId": issueID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var reports []models.Report
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// MongoIssueStore keeps issues in the "issues" collection.
type MongoIssueStore struct {
	coll *mongo.Collection
}

func NewMongoIssueStore(db *mongo.Database) *MongoIssueStore {
	return &MongoIssueStore{coll: db.Collection("issues")}
}

// EnsureIssueIndexes creates the listing and scan indexes.
func EnsureIssueIndexes(db *mongo.Database) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := db.Collection("issues").Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "lastTransition", Value: 1}}},
		{Keys: bson.D{{Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "unitId", Value: 1}}},
	})
	return err
}

func (s *MongoIssueStore) Create(ctx context.Context, issue *models.Issue) (primitive.ObjectID, error) {
	issue.ID = primitive.NewObjectID()
	now := time.Now()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.LastTransition.IsZero() {
		issue.LastTransition = issue.CreatedAt
	}

	if _, err := s.coll.InsertOne(ctx, issue); err != nil {
		return primitive.NilObjectID, err
	}
	return issue.ID, nil
}

func (s *MongoIssueStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	var issue models.Issue
	err := s.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&issue)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// AddMember runs under the aggregator's cell lock, so the read-modify-write
// of the centroid does not race with another merge into the same issue.
// Transitions run outside that lock, so the update swaps on a non-terminal
// status; a closed issue never absorbs a report.
func (s *MongoIssueStore) AddMember(ctx context.Context, issueID, reportID primitive.ObjectID, loc models.GeoPoint) (*models.Issue, error) {
	issue, err := s.Get(ctx, issueID)
	if err != nil {
		return nil, err
	}
	if issue.Status.Terminal() {
		return nil, ErrConflict
	}
	if issue.HasMember(reportID) {
		return issue, nil
	}

	n := float64(len(issue.Members))
	centroid := models.GeoPoint{
		Latitude:  (issue.Centroid.Latitude*n + loc.Latitude) / (n + 1),
		Longitude: (issue.Centroid.Longitude*n + loc.Longitude) / (n + 1),
	}

	var updated models.Issue
	err = s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": issueID, "status": bson.M{"$nin": bson.A{models.Resolved, models.Rejected}}},
		bson.M{
			"$set":      bson.M{"centroid": centroid},
			"$addToSet": bson.M{"members": reportID},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		// Distinguish a missing issue from one that went terminal.
		if _, getErr := s.Get(ctx, issueID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *MongoIssueStore) ApplyTransition(ctx context.Context, issueID primitive.ObjectID, ev models.StatusEvent) (*models.Issue, error) {
	var updated models.Issue
	err := s.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": issueID, "status": ev.From},
		bson.M{
			"$set":  bson.M{"status": ev.To, "lastTransition": ev.Timestamp},
			"$push": bson.M{"events": ev},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&updated)
	if err == mongo.ErrNoDocuments {
		// Distinguish a missing issue from a lost compare-and-swap.
		if _, getErr := s.Get(ctx, issueID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *MongoIssueStore) List(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error) {
	filter := bson.M{}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if f.UnitID != "" {
		filter["unitId"] = f.UnitID
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 10
	}

	total, err := s.coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	findOptions := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.coll.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, 0, err
	}
	return issues, total, nil
}

func (s *MongoIssueStore) ListActive(ctx context.Context) ([]models.Issue, error) {
	cursor, err := s.coll.Find(ctx, bson.M{
		"status": bson.M{"$nin": bson.A{models.Resolved, models.Rejected}},
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var issues []models.Issue
	if err := cursor.All(ctx, &issues); err != nil {
		return nil, err
	}
	return issues, nil
}
