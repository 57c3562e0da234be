// Package escalation watches for issues no authority has acted on. The
// scheduler periodically scans non-terminal issues and raises advisory
// escalation events once their time in the current status exceeds a
// per-status threshold. Escalation never mutates issue state.
package escalation

import (
	"context"
	"log"
	"sync"
	"time"

	"emwananchi-core/models"
	"emwananchi-core/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event is one advisory escalation signal. Tier 1 fires at the threshold,
// tier 2 at twice the threshold, and so on.
type Event struct {
	IssueID primitive.ObjectID
	UnitID  string
	Status  models.IssueStatus
	Overdue time.Duration
	Tier    int
}

// Notifier delivers escalation events to the outside world.
type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

type tierKey struct {
	issue  primitive.ObjectID
	status models.IssueStatus
}

// Scheduler owns the periodic scan. Escalation state is derived: only the
// highest tier already emitted per issue+status is tracked, and only in
// memory, so a restart at worst re-emits the current tier once.
type Scheduler struct {
	issues     store.IssueStore
	notifier   Notifier
	interval   time.Duration
	thresholds map[models.IssueStatus]time.Duration

	mu      sync.Mutex
	emitted map[tierKey]int
}

func NewScheduler(issues store.IssueStore, notifier Notifier, interval time.Duration, thresholds map[models.IssueStatus]time.Duration) *Scheduler {
	return &Scheduler{
		issues:     issues,
		notifier:   notifier,
		interval:   interval,
		thresholds: thresholds,
		emitted:    make(map[tierKey]int),
	}
}

// Run scans on every tick until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Scan(ctx)
		}
	}
}

// Scan performs one pass. It snapshots the active issues first and holds no
// store locks while evaluating them; an issue that transitions between
// snapshot and emission is silently skipped. A failure on one issue never
// aborts the rest of the scan.
func (s *Scheduler) Scan(ctx context.Context) {
	snapshot, err := s.issues.ListActive(ctx)
	if err != nil {
		log.Printf("escalation scan: listing active issues: %v", err)
		return
	}

	now := time.Now()
	active := make(map[tierKey]bool, len(snapshot))

	for i := range snapshot {
		issue := &snapshot[i]
		active[tierKey{issue.ID, issue.Status}] = true
		s.evaluate(ctx, issue, now)
	}

	s.prune(active)
}

func (s *Scheduler) evaluate(ctx context.Context, issue *models.Issue, now time.Time) {
	threshold, ok := s.thresholds[issue.Status]
	if !ok || threshold <= 0 {
		return
	}

	overdue := now.Sub(issue.LastTransition)
	tier := int(overdue / threshold)
	if tier < 1 {
		return
	}

	key := tierKey{issue.ID, issue.Status}
	s.mu.Lock()
	already := s.emitted[key]
	s.mu.Unlock()
	if tier <= already {
		return
	}

	// Re-check at emission time: the snapshot may be stale.
	current, err := s.issues.Get(ctx, issue.ID)
	if err != nil {
		log.Printf("escalation scan: re-checking issue %s: %v", issue.ID.Hex(), err)
		return
	}
	if current.Status != issue.Status {
		return
	}

	ev := Event{
		IssueID: issue.ID,
		UnitID:  issue.UnitID,
		Status:  issue.Status,
		Overdue: overdue,
		Tier:    tier,
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.Printf("escalation scan: notifying for issue %s: %v", issue.ID.Hex(), err)
		return
	}

	s.mu.Lock()
	if tier > s.emitted[key] {
		s.emitted[key] = tier
	}
	s.mu.Unlock()
}

// prune drops tier records for issue+status pairs that are no longer
// active, so the map does not grow with the lifetime of the process.
func (s *Scheduler) prune(active map[tierKey]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.emitted {
		if !active[key] {
			delete(s.emitted, key)
		}
	}
}
