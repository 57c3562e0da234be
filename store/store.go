// Package store holds the durable state of the core: raw citizen reports
// and the deduplicated issues derived from them. Both stores exist in a
// MongoDB flavor for production and an in-memory flavor used by tests and
// MEMORY_MODE development runs.
package store

import (
	"context"
	"errors"

	"emwananchi-core/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrNotFound is returned when the referenced report or issue does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyLinked is returned when a report is linked to a different
	// issue than the one it already belongs to. Under correct aggregator
	// locking this never happens; callers log it as a severe anomaly.
	ErrAlreadyLinked = errors.New("report already linked to another issue")

	// ErrConflict is returned when a compare-and-swap update lost against a
	// concurrent writer.
	ErrConflict = errors.New("concurrent modification conflict")
)

// IssueFilter narrows and paginates issue listings.
type IssueFilter struct {
	Status   models.IssueStatus
	Category models.ReportCategory
	UnitID   string
	Page     int
	Limit    int
}

// ReportStore persists raw submissions. Reports are never deleted; their
// only mutable field is the issue back-reference.
type ReportStore interface {
	// Submit validates and persists a new report, returning its id.
	Submit(ctx context.Context, r *models.Report) (primitive.ObjectID, error)

	// Get returns the report or ErrNotFound.
	Get(ctx context.Context, id primitive.ObjectID) (*models.Report, error)

	// LinkToIssue sets the report's issue reference. Re-linking to the same
	// issue is a no-op; linking to a different one fails with ErrAlreadyLinked.
	LinkToIssue(ctx context.Context, reportID, issueID primitive.ObjectID) error

	// ListByIssue returns all member reports of an issue.
	ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Report, error)
}

// IssueStore persists tracked issues. Issues are never deleted, only
// terminated via a transition into a terminal status.
type IssueStore interface {
	// Create persists a new issue and returns its id.
	Create(ctx context.Context, issue *models.Issue) (primitive.ObjectID, error)

	// Get returns the issue or ErrNotFound.
	Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)

	// AddMember merges a report into the issue, recomputing the centroid as
	// the running average of member locations. Adding a report that is
	// already a member is a no-op. Returns the updated issue.
	AddMember(ctx context.Context, issueID, reportID primitive.ObjectID, loc models.GeoPoint) (*models.Issue, error)

	// ApplyTransition appends ev and moves the issue from ev.From to ev.To,
	// guarded by a compare-and-swap on the current status. Returns
	// ErrConflict if the issue is no longer in ev.From.
	ApplyTransition(ctx context.Context, issueID primitive.ObjectID, ev models.StatusEvent) (*models.Issue, error)

	// List returns a page of issues matching the filter plus the total count.
	List(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error)

	// ListActive returns every non-terminal issue. Used to rebuild the
	// similarity index on startup and by the escalation scan.
	ListActive(ctx context.Context) ([]models.Issue, error)
}
