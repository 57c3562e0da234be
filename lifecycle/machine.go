// Package lifecycle governs issue status transitions. The transition table
// is linear with rejection allowed from any non-terminal status:
//
//	reported -> acknowledged -> in_progress -> resolved
//	reported | acknowledged | in_progress -> rejected
//
// Terminal statuses are final. No transition is ever reversed; correcting a
// wrong transition takes a new issue (documented limitation).
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"emwananchi-core/models"
	"emwananchi-core/similarity"
	"emwananchi-core/store"

	"github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrInvalidTransition is returned when the target status is not
	// reachable from the issue's current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrUnauthorized is returned when the actor may not act for the
	// issue's responsible unit.
	ErrUnauthorized = errors.New("actor not authorized for this unit")
)

// Authorizer is the identity collaborator: it decides whether an actor may
// perform an action on behalf of a government unit.
type Authorizer interface {
	Authorize(ctx context.Context, actorID primitive.ObjectID, unitID string, action string) (bool, error)
}

var validNext = map[models.IssueStatus][]models.IssueStatus{
	models.Reported:     {models.Acknowledged, models.Rejected},
	models.Acknowledged: {models.InProgress, models.Rejected},
	models.InProgress:   {models.Resolved, models.Rejected},
}

func reachable(from, to models.IssueStatus) bool {
	for _, next := range validNext[from] {
		if next == to {
			return true
		}
	}
	return false
}

const transitionStripes = 64

// Machine serializes transitions per issue. A striped mutex orders callers
// in this process; the store's compare-and-swap on the current status
// guards against writers the stripes cannot see. A lost swap is retried a
// bounded number of times before surfacing as a conflict.
type Machine struct {
	issues  store.IssueStore
	auth    Authorizer
	index   *similarity.Index // may be nil; terminal issues are dropped from it
	stripes [transitionStripes]sync.Mutex
}

func NewMachine(issues store.IssueStore, auth Authorizer, index *similarity.Index) *Machine {
	return &Machine{issues: issues, auth: auth, index: index}
}

func (m *Machine) stripe(id primitive.ObjectID) *sync.Mutex {
	h := fnv.New32a()
	h.Write(id[:])
	return &m.stripes[h.Sum32()%transitionStripes]
}

// Transition moves the issue to target on behalf of actor, appending a
// status event. Exactly one of two concurrent callers transitioning from
// the same source status succeeds; the other observes ErrInvalidTransition
// against the new status. Returns the issue as written together with the
// event, so callers never re-read and observe a later transition.
func (m *Machine) Transition(ctx context.Context, issueID primitive.ObjectID, target models.IssueStatus, actor primitive.ObjectID, note string) (*models.Issue, *models.StatusEvent, error) {
	if !models.ValidStatus(target) {
		return nil, nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, target)
	}

	mu := m.stripe(issueID)
	mu.Lock()
	defer mu.Unlock()

	var (
		updated *models.Issue
		event   *models.StatusEvent
	)
	op := func() error {
		issue, err := m.issues.Get(ctx, issueID)
		if err != nil {
			return backoff.Permanent(err)
		}
		if issue.Status.Terminal() || !reachable(issue.Status, target) {
			return backoff.Permanent(fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, issue.Status, target))
		}

		ok, err := m.auth.Authorize(ctx, actor, issue.UnitID, "transition")
		if err != nil {
			return backoff.Permanent(err)
		}
		if !ok {
			return backoff.Permanent(fmt.Errorf("%w: actor %s, unit %s", ErrUnauthorized, actor.Hex(), issue.UnitID))
		}

		ev := models.StatusEvent{
			From:      issue.Status,
			To:        target,
			Actor:     actor,
			Note:      note,
			Timestamp: time.Now(),
		}
		issue, err = m.issues.ApplyTransition(ctx, issueID, ev)
		if err != nil {
			if err == store.ErrConflict {
				return err // retryable: re-read and re-validate
			}
			return backoff.Permanent(err)
		}
		updated = issue
		event = &ev
		return nil
	}

	err := backoff.Retry(op, backoff.WithMaxRetries(backoff.NewConstantBackOff(25*time.Millisecond), 3))
	if err != nil {
		return nil, nil, err
	}

	if target.Terminal() && m.index != nil {
		m.index.Remove(issueID)
	}
	return updated, event, nil
}
