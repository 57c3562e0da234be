package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"emwananchi-core/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemReportStore is the in-memory ReportStore used by tests and MEMORY_MODE.
type MemReportStore struct {
	mu      sync.RWMutex
	reports map[primitive.ObjectID]*models.Report
}

func NewMemReportStore() *MemReportStore {
	return &MemReportStore{reports: make(map[primitive.ObjectID]*models.Report)}
}

func (s *MemReportStore) Submit(ctx context.Context, r *models.Report) (primitive.ObjectID, error) {
	if err := r.Validate(); err != nil {
		return primitive.NilObjectID, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	r.ID = primitive.NewObjectID()
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	stored := *r
	s.reports[r.ID] = &stored
	return r.ID, nil
}

func (s *MemReportStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r
	return &out, nil
}

func (s *MemReportStore) LinkToIssue(ctx context.Context, reportID, issueID primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.reports[reportID]
	if !ok {
		return ErrNotFound
	}
	if !r.IssueID.IsZero() && r.IssueID != issueID {
		return ErrAlreadyLinked
	}
	r.IssueID = issueID
	return nil
}

func (s *MemReportStore) ListByIssue(ctx context.Context, issueID primitive.ObjectID) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var reports []models.Report
	for _, r := range s.reports {
		if r.IssueID == issueID {
			reports = append(reports, *r)
		}
	}
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].CreatedAt.Before(reports[j].CreatedAt)
	})
	return reports, nil
}

// MemIssueStore is the in-memory IssueStore used by tests and MEMORY_MODE.
type MemIssueStore struct {
	mu     sync.RWMutex
	issues map[primitive.ObjectID]*models.Issue
}

func NewMemIssueStore() *MemIssueStore {
	return &MemIssueStore{issues: make(map[primitive.ObjectID]*models.Issue)}
}

func copyIssue(i *models.Issue) *models.Issue {
	out := *i
	out.Members = append([]primitive.ObjectID(nil), i.Members...)
	out.Events = append([]models.StatusEvent(nil), i.Events...)
	return &out
}

func (s *MemIssueStore) Create(ctx context.Context, issue *models.Issue) (primitive.ObjectID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue.ID = primitive.NewObjectID()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = time.Now()
	}
	if issue.LastTransition.IsZero() {
		issue.LastTransition = issue.CreatedAt
	}

	s.issues[issue.ID] = copyIssue(issue)
	return issue.ID, nil
}

func (s *MemIssueStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyIssue(issue), nil
}

func (s *MemIssueStore) AddMember(ctx context.Context, issueID, reportID primitive.ObjectID, loc models.GeoPoint) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[issueID]
	if !ok {
		return nil, ErrNotFound
	}
	if issue.Status.Terminal() {
		return nil, ErrConflict
	}
	if issue.HasMember(reportID) {
		return copyIssue(issue), nil
	}

	n := float64(len(issue.Members))
	issue.Centroid = models.GeoPoint{
		Latitude:  (issue.Centroid.Latitude*n + loc.Latitude) / (n + 1),
		Longitude: (issue.Centroid.Longitude*n + loc.Longitude) / (n + 1),
	}
	issue.Members = append(issue.Members, reportID)
	return copyIssue(issue), nil
}

func (s *MemIssueStore) ApplyTransition(ctx context.Context, issueID primitive.ObjectID, ev models.StatusEvent) (*models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[issueID]
	if !ok {
		return nil, ErrNotFound
	}
	if issue.Status != ev.From {
		return nil, ErrConflict
	}
	issue.Status = ev.To
	issue.LastTransition = ev.Timestamp
	issue.Events = append(issue.Events, ev)
	return copyIssue(issue), nil
}

func (s *MemIssueStore) List(ctx context.Context, f IssueFilter) ([]models.Issue, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Issue
	for _, issue := range s.issues {
		if f.Status != "" && issue.Status != f.Status {
			continue
		}
		if f.Category != "" && issue.Category != f.Category {
			continue
		}
		if f.UnitID != "" && issue.UnitID != f.UnitID {
			continue
		}
		matched = append(matched, issue)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	page := f.Page
	if page < 1 {
		page = 1
	}
	limit := f.Limit
	if limit < 1 || limit > 100 {
		limit = 10
	}

	total := int64(len(matched))
	start := (page - 1) * limit
	if start > len(matched) {
		start = len(matched)
	}
	end := start + limit
	if end > len(matched) {
		end = len(matched)
	}

	out := make([]models.Issue, 0, end-start)
	for _, issue := range matched[start:end] {
		out = append(out, *copyIssue(issue))
	}
	return out, total, nil
}

func (s *MemIssueStore) ListActive(ctx context.Context) ([]models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Issue
	for _, issue := range s.issues {
		if !issue.Status.Terminal() {
			out = append(out, *copyIssue(issue))
		}
	}
	return out, nil
}
