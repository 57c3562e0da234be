// Package aggregator turns raw reports into deduplicated issues. Resolution
// is serialized per geographic region so near-simultaneous duplicate
// reports collapse into a single issue instead of racing two into
// existence.
package aggregator

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"sort"
	"sync"
	"time"

	"emwananchi-core/models"
	"emwananchi-core/similarity"
	"emwananchi-core/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Router resolves the responsible government unit for a new issue.
type Router interface {
	Route(category models.ReportCategory, loc models.GeoPoint) (string, error)
}

const regionStripes = 256

// Aggregator decides merge-or-create for every incoming report.
type Aggregator struct {
	reports   store.ReportStore
	issues    store.IssueStore
	index     *similarity.Index
	router    Router
	threshold float64

	locks [regionStripes]sync.Mutex
}

// New builds an aggregator. Reports merge into the best candidate scoring
// at or above the threshold; anything below creates a new issue.
func New(reports store.ReportStore, issues store.IssueStore, index *similarity.Index, router Router, threshold float64) *Aggregator {
	return &Aggregator{
		reports:   reports,
		issues:    issues,
		index:     index,
		router:    router,
		threshold: threshold,
	}
}

// Resolve assigns the report to an issue, merging into the best-scoring
// live candidate or creating a fresh issue in status reported. The report
// must already be persisted. Returns the issue and whether it was created.
//
// The whole decision runs under the locks of the report's 3x3 cell
// neighborhood. Any two reports within the search radius of each other
// share at least one locked cell, so the duplicate check and the
// insert/merge are atomic with respect to each other.
func (a *Aggregator) Resolve(ctx context.Context, report *models.Report) (*models.Issue, bool, error) {
	unlock := a.lockRegion(report.Location)
	defer unlock()

	for _, cand := range a.index.FindCandidates(report) {
		if cand.Score < a.threshold {
			break
		}
		issue, err := a.issues.Get(ctx, cand.IssueID)
		if err == store.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, false, err
		}
		if issue.Status.Terminal() {
			// Stale index entry; a terminal issue never absorbs new reports.
			a.index.Remove(issue.ID)
			continue
		}
		merged, created, err := a.merge(ctx, issue, report)
		if err == store.ErrConflict {
			// The issue went terminal between the candidate read and the
			// merge. Drop it and keep looking.
			a.index.Remove(issue.ID)
			continue
		}
		return merged, created, err
	}

	return a.create(ctx, report)
}

func (a *Aggregator) merge(ctx context.Context, issue *models.Issue, report *models.Report) (*models.Issue, bool, error) {
	updated, err := a.issues.AddMember(ctx, issue.ID, report.ID, report.Location)
	if err != nil {
		return nil, false, err
	}
	if err := a.reports.LinkToIssue(ctx, report.ID, issue.ID); err != nil {
		if err == store.ErrAlreadyLinked {
			// Should be impossible under the region lock.
			log.Printf("SEVERE: report %s already linked while merging into issue %s", report.ID.Hex(), issue.ID.Hex())
		}
		return nil, false, err
	}
	a.index.UpdateCentroid(issue.ID, updated.Centroid)
	return updated, false, nil
}

func (a *Aggregator) create(ctx context.Context, report *models.Report) (*models.Issue, bool, error) {
	unitID, err := a.router.Route(report.Category, report.Location)
	if err != nil {
		return nil, false, err
	}

	now := time.Now()
	issue := &models.Issue{
		Category:       report.Category,
		Centroid:       report.Location,
		Status:         models.Reported,
		UnitID:         unitID,
		Members:        []primitive.ObjectID{report.ID},
		CreatedAt:      now,
		LastTransition: now,
	}
	if _, err := a.issues.Create(ctx, issue); err != nil {
		return nil, false, err
	}
	if err := a.reports.LinkToIssue(ctx, report.ID, issue.ID); err != nil {
		return nil, false, err
	}
	a.index.Insert(issue, report.Description)
	return issue, true, nil
}

// lockRegion acquires the stripes covering the report's cell and its eight
// neighbors, deduplicated and in sorted order so overlapping regions never
// deadlock. Stripes are a fixed array, so the lock table stays bounded no
// matter how many cells the process ever touches; unrelated cells landing
// on the same stripe just serialize a little more.
func (a *Aggregator) lockRegion(loc models.GeoPoint) func() {
	latIdx, lngIdx := a.index.CellOf(loc)

	seen := make(map[int]bool, 9)
	stripes := make([]int, 0, 9)
	for dLat := -1; dLat <= 1; dLat++ {
		for dLng := -1; dLng <= 1; dLng++ {
			h := fnv.New32a()
			fmt.Fprintf(h, "%d:%d", latIdx+dLat, lngIdx+dLng)
			idx := int(h.Sum32() % regionStripes)
			if !seen[idx] {
				seen[idx] = true
				stripes = append(stripes, idx)
			}
		}
	}
	sort.Ints(stripes)

	for _, idx := range stripes {
		a.locks[idx].Lock()
	}
	return func() {
		for i := len(stripes) - 1; i >= 0; i-- {
			a.locks[stripes[i]].Unlock()
		}
	}
}
