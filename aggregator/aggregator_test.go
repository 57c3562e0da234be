package aggregator_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"emwananchi-core/aggregator"
	"emwananchi-core/models"
	"emwananchi-core/routing"
	"emwananchi-core/similarity"
	"emwananchi-core/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// unitRouter assigns every report to one fixed unit.
type unitRouter struct{ id string }

func (r unitRouter) Route(models.ReportCategory, models.GeoPoint) (string, error) {
	return r.id, nil
}

// deadRouter covers nothing.
type deadRouter struct{}

func (deadRouter) Route(category models.ReportCategory, loc models.GeoPoint) (string, error) {
	return "", fmt.Errorf("%w: category %s", routing.ErrNoJurisdiction, category)
}

type fixture struct {
	reports *store.MemReportStore
	issues  *store.MemIssueStore
	index   *similarity.Index
	agg     *aggregator.Aggregator
}

func newFixture(t *testing.T, router aggregator.Router) *fixture {
	t.Helper()
	f := &fixture{
		reports: store.NewMemReportStore(),
		issues:  store.NewMemIssueStore(),
		index:   similarity.NewIndex(150, 0.5, 0.5, similarity.TokenOverlapScorer{}),
	}
	f.agg = aggregator.New(f.reports, f.issues, f.index, router, 0.75)
	return f
}

func (f *fixture) submit(t *testing.T, lat, lng float64, category models.ReportCategory, desc string) *models.Report {
	t.Helper()
	r := &models.Report{
		SubmittedBy: primitive.NewObjectID(),
		Category:    category,
		Description: desc,
		Location:    models.GeoPoint{Latitude: lat, Longitude: lng},
	}
	_, err := f.reports.Submit(context.Background(), r)
	require.NoError(t, err)
	return r
}

func TestResolveCreatesIssueForFirstReport(t *testing.T) {
	f := newFixture(t, unitRouter{"nairobi-roads"})
	ctx := context.Background()

	report := f.submit(t, -1.2860, 36.8170, models.Roads, "Huge pothole on Moi Avenue near the bus stop")
	issue, created, err := f.agg.Resolve(ctx, report)
	require.NoError(t, err)

	assert.True(t, created)
	assert.Equal(t, models.Reported, issue.Status)
	assert.Equal(t, "nairobi-roads", issue.UnitID)
	assert.Equal(t, report.Location, issue.Centroid)
	assert.Equal(t, []primitive.ObjectID{report.ID}, issue.Members)

	linked, err := f.reports.Get(ctx, report.ID)
	require.NoError(t, err)
	assert.Equal(t, issue.ID, linked.IssueID)
}

func TestResolveMergesNearDuplicate(t *testing.T) {
	f := newFixture(t, unitRouter{"nairobi-roads"})
	ctx := context.Background()

	first := f.submit(t, -1.2860, 36.8170, models.Roads, "Huge pothole on Moi Avenue near the bus stop")
	original, created, err := f.agg.Resolve(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	second := f.submit(t, -1.2861, 36.8171, models.Roads, "Huge pothole on Moi Avenue near a bus stop")
	merged, created, err := f.agg.Resolve(ctx, second)
	require.NoError(t, err)

	assert.False(t, created)
	assert.Equal(t, original.ID, merged.ID)
	assert.Len(t, merged.Members, 2)
	// Centroid slid halfway toward the second report.
	assert.InDelta(t, -1.28605, merged.Centroid.Latitude, 1e-9)
	assert.InDelta(t, 36.81705, merged.Centroid.Longitude, 1e-9)

	// The merge appends no status event.
	assert.Empty(t, merged.Events)
}

func TestResolveCreatesWhenBelowThreshold(t *testing.T) {
	f := newFixture(t, unitRouter{"nairobi-roads"})
	ctx := context.Background()

	first := f.submit(t, -1.2860, 36.8170, models.Roads, "Huge pothole on Moi Avenue near the bus stop")
	_, _, err := f.agg.Resolve(ctx, first)
	require.NoError(t, err)

	// Same place and category, unrelated text: proximity alone scores 0.5.
	second := f.submit(t, -1.2860, 36.8170, models.Roads, "Faded zebra crossing markings outside library")
	_, created, err := f.agg.Resolve(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)

	active, err := f.issues.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestResolveIgnoresOtherCategory(t *testing.T) {
	f := newFixture(t, unitRouter{"nairobi-roads"})
	ctx := context.Background()

	first := f.submit(t, -1.2860, 36.8170, models.Roads, "Water flooding the junction")
	_, _, err := f.agg.Resolve(ctx, first)
	require.NoError(t, err)

	second := f.submit(t, -1.2860, 36.8170, models.Water, "Water flooding the junction")
	_, created, err := f.agg.Resolve(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)
}

func TestResolveSkipsTerminalIssue(t *testing.T) {
	f := newFixture(t, unitRouter{"nairobi-roads"})
	ctx := context.Background()

	first := f.submit(t, -1.2860, 36.8170, models.Roads, "Huge pothole on Moi Avenue near the bus stop")
	issue, _, err := f.agg.Resolve(ctx, first)
	require.NoError(t, err)

	// Resolve the issue behind the aggregator's back.
	_, err = f.issues.ApplyTransition(ctx, issue.ID, models.StatusEvent{
		From: models.Reported, To: models.Rejected, Actor: primitive.NewObjectID(),
	})
	require.NoError(t, err)

	second := f.submit(t, -1.2860, 36.8170, models.Roads, "Huge pothole on Moi Avenue near the bus stop")
	fresh, created, err := f.agg.Resolve(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, issue.ID, fresh.ID)
}

func TestResolveSurfacesNoJurisdiction(t *testing.T) {
	f := newFixture(t, deadRouter{})
	ctx := context.Background()

	report := f.submit(t, -1.2860, 36.8170, models.Roads, "Huge pothole on Moi Avenue")
	_, _, err := f.agg.Resolve(ctx, report)
	assert.ErrorIs(t, err, routing.ErrNoJurisdiction)
}

// staleIssueStore reads back every issue as still reported, reproducing
// the window where a transition to a terminal status lands between the
// candidate read and the merge.
type staleIssueStore struct {
	store.IssueStore
}

func (s staleIssueStore) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.IssueStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	issue.Status = models.Reported
	return issue, nil
}

func TestResolveMergeLosesToTerminalTransition(t *testing.T) {
	ctx := context.Background()
	reports := store.NewMemReportStore()
	issues := store.NewMemIssueStore()
	index := similarity.NewIndex(150, 0.5, 0.5, similarity.TokenOverlapScorer{})
	agg := aggregator.New(reports, staleIssueStore{IssueStore: issues}, index, unitRouter{"nairobi-roads"}, 0.75)

	first := &models.Report{
		SubmittedBy: primitive.NewObjectID(),
		Category:    models.Roads,
		Description: "Huge pothole on Moi Avenue near the bus stop",
		Location:    models.GeoPoint{Latitude: -1.2860, Longitude: 36.8170},
	}
	_, err := reports.Submit(ctx, first)
	require.NoError(t, err)
	issue, created, err := agg.Resolve(ctx, first)
	require.NoError(t, err)
	require.True(t, created)

	// The issue closes while the aggregator still sees it as reported.
	_, err = issues.ApplyTransition(ctx, issue.ID, models.StatusEvent{
		From: models.Reported, To: models.Rejected, Actor: primitive.NewObjectID(),
	})
	require.NoError(t, err)

	second := &models.Report{
		SubmittedBy: primitive.NewObjectID(),
		Category:    models.Roads,
		Description: "Huge pothole on Moi Avenue near a bus stop",
		Location:    models.GeoPoint{Latitude: -1.2861, Longitude: 36.8171},
	}
	_, err = reports.Submit(ctx, second)
	require.NoError(t, err)

	// The merge loses the swap against the terminal status and the report
	// opens a fresh issue instead of vanishing into the closed one.
	fresh, created, err := agg.Resolve(ctx, second)
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, issue.ID, fresh.ID)

	closed, err := issues.Get(ctx, issue.ID)
	require.NoError(t, err)
	assert.Equal(t, models.Rejected, closed.Status)
	assert.Len(t, closed.Members, 1)

	linked, err := reports.Get(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, fresh.ID, linked.IssueID)
}

// TestResolveConcurrentDuplicates checks the aggregation race guarantee:
// N near-identical reports racing through Resolve must collapse into
// exactly one issue holding all N members.
func TestResolveConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, unitRouter{"nairobi-roads"})
	ctx := context.Background()

	const n = 24
	reports := make([]*models.Report, n)
	for i := 0; i < n; i++ {
		// Jitter within a few meters of the same pothole.
		lat := -1.28600 + float64(i%5)*0.00001
		lng := 36.81700 + float64(i/5)*0.00001
		reports[i] = f.submit(t, lat, lng, models.Roads, "Burst sewer flooding Kimathi street sidewalk")
	}

	issueIDs := make([]primitive.ObjectID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			issue, _, err := f.agg.Resolve(ctx, reports[i])
			assert.NoError(t, err)
			issueIDs[i] = issue.ID
		}(i)
	}
	wg.Wait()

	for i := 1; i < n; i++ {
		assert.Equal(t, issueIDs[0], issueIDs[i], "report %d landed in a different issue", i)
	}

	active, err := f.issues.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Len(t, active[0].Members, n)
}

// TestResolveConcurrentDistantReports races reports kilometers apart
// through Resolve. Unrelated regions can land on the same lock stripe;
// every report must still open its own issue and nothing may deadlock.
func TestResolveConcurrentDistantReports(t *testing.T) {
	f := newFixture(t, unitRouter{"nairobi-roads"})
	ctx := context.Background()

	const n = 40
	reports := make([]*models.Report, n)
	for i := 0; i < n; i++ {
		// Roughly 5.5 km between consecutive reports.
		lat := -1.0 + float64(i)*0.05
		reports[i] = f.submit(t, lat, 36.8, models.Roads, fmt.Sprintf("Collapsed drain at culvert %d", i))
	}

	issueIDs := make([]primitive.ObjectID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			issue, created, err := f.agg.Resolve(ctx, reports[i])
			assert.NoError(t, err)
			assert.True(t, created)
			issueIDs[i] = issue.ID
		}(i)
	}
	wg.Wait()

	distinct := make(map[primitive.ObjectID]bool, n)
	for _, id := range issueIDs {
		distinct[id] = true
	}
	assert.Len(t, distinct, n)
}
