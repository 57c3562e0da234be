package similarity_test

import (
	"testing"
	"time"

	"emwananchi-core/models"
	"emwananchi-core/similarity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTestIndex() *similarity.Index {
	return similarity.NewIndex(150, 0.5, 0.5, similarity.TokenOverlapScorer{})
}

func indexedIssue(lat, lng float64, category models.ReportCategory, createdAt time.Time) *models.Issue {
	return &models.Issue{
		ID:        primitive.NewObjectID(),
		Category:  category,
		Centroid:  models.GeoPoint{Latitude: lat, Longitude: lng},
		Status:    models.Reported,
		CreatedAt: createdAt,
	}
}

func reportAt(lat, lng float64, category models.ReportCategory, desc string) *models.Report {
	return &models.Report{
		ID:          primitive.NewObjectID(),
		Category:    category,
		Description: desc,
		Location:    models.GeoPoint{Latitude: lat, Longitude: lng},
	}
}

func TestFindCandidatesRadiusGate(t *testing.T) {
	ix := newTestIndex()
	now := time.Now()

	near := indexedIssue(-1.2860, 36.8170, models.Roads, now)
	far := indexedIssue(-1.2960, 36.8170, models.Roads, now) // ~1.1 km south
	ix.Insert(near, "pothole moi avenue")
	ix.Insert(far, "pothole moi avenue")

	cands := ix.FindCandidates(reportAt(-1.2861, 36.8171, models.Roads, "pothole moi avenue"))
	require.Len(t, cands, 1)
	assert.Equal(t, near.ID, cands[0].IssueID)
}

func TestFindCandidatesCategoryGate(t *testing.T) {
	ix := newTestIndex()
	now := time.Now()

	roads := indexedIssue(-1.2860, 36.8170, models.Roads, now)
	water := indexedIssue(-1.2860, 36.8170, models.Water, now)
	ix.Insert(roads, "problem at the junction")
	ix.Insert(water, "problem at the junction")

	cands := ix.FindCandidates(reportAt(-1.2860, 36.8170, models.Water, "problem at the junction"))
	require.Len(t, cands, 1)
	assert.Equal(t, water.ID, cands[0].IssueID)
}

func TestFindCandidatesOrderedByScore(t *testing.T) {
	ix := newTestIndex()
	now := time.Now()

	matching := indexedIssue(-1.2860, 36.8170, models.Roads, now)
	unrelated := indexedIssue(-1.2860, 36.8172, models.Roads, now)
	ix.Insert(matching, "pothole near bus stop moi avenue")
	ix.Insert(unrelated, "collapsed drainage culvert blocking lane")

	cands := ix.FindCandidates(reportAt(-1.2860, 36.8170, models.Roads, "pothole near bus stop moi avenue"))
	require.Len(t, cands, 2)
	assert.Equal(t, matching.ID, cands[0].IssueID)
	assert.Greater(t, cands[0].Score, cands[1].Score)
	assert.InDelta(t, 1.0, cands[0].Score, 1e-9)

	for _, cand := range cands {
		assert.GreaterOrEqual(t, cand.Score, 0.0)
		assert.LessOrEqual(t, cand.Score, 1.0)
	}
}

func TestFindCandidatesTieBreakPrefersRecent(t *testing.T) {
	ix := newTestIndex()
	now := time.Now()

	older := indexedIssue(-1.2860, 36.8170, models.Roads, now.Add(-48*time.Hour))
	newer := indexedIssue(-1.2860, 36.8170, models.Roads, now)
	ix.Insert(older, "same pothole same place")
	ix.Insert(newer, "same pothole same place")

	cands := ix.FindCandidates(reportAt(-1.2860, 36.8170, models.Roads, "same pothole same place"))
	require.Len(t, cands, 2)
	assert.Equal(t, cands[0].Score, cands[1].Score)
	assert.Equal(t, newer.ID, cands[0].IssueID)
}

func TestFindCandidatesEmptyWhenNothingInRadius(t *testing.T) {
	ix := newTestIndex()
	ix.Insert(indexedIssue(-1.2860, 36.8170, models.Roads, time.Now()), "pothole")

	cands := ix.FindCandidates(reportAt(-1.4000, 36.9500, models.Roads, "pothole"))
	assert.Empty(t, cands)
}

func TestUpdateCentroidAndRemove(t *testing.T) {
	ix := newTestIndex()
	issue := indexedIssue(-1.2860, 36.8170, models.Roads, time.Now())
	ix.Insert(issue, "pothole moi avenue")

	// Move the centroid far enough to land in another grid cell; the issue
	// must be findable at the new location and not at the old one.
	moved := models.GeoPoint{Latitude: -1.2960, Longitude: 36.8170}
	ix.UpdateCentroid(issue.ID, moved)

	assert.Empty(t, ix.FindCandidates(reportAt(-1.2860, 36.8170, models.Roads, "pothole moi avenue")))
	cands := ix.FindCandidates(reportAt(-1.2960, 36.8170, models.Roads, "pothole moi avenue"))
	require.Len(t, cands, 1)
	assert.Equal(t, issue.ID, cands[0].IssueID)

	ix.Remove(issue.ID)
	assert.Empty(t, ix.FindCandidates(reportAt(-1.2960, 36.8170, models.Roads, "pothole moi avenue")))
}

func TestRebuildSkipsTerminalIssues(t *testing.T) {
	ix := newTestIndex()

	active := indexedIssue(-1.2860, 36.8170, models.Roads, time.Now())
	terminal := indexedIssue(-1.2860, 36.8172, models.Roads, time.Now())
	terminal.Status = models.Resolved

	ix.Rebuild([]models.Issue{*active, *terminal}, func(issue *models.Issue) string {
		return "pothole moi avenue"
	})

	cands := ix.FindCandidates(reportAt(-1.2860, 36.8170, models.Roads, "pothole moi avenue"))
	require.Len(t, cands, 1)
	assert.Equal(t, active.ID, cands[0].IssueID)
}

func TestDistance(t *testing.T) {
	a := models.GeoPoint{Latitude: -1.2860, Longitude: 36.8170}
	b := models.GeoPoint{Latitude: -1.2861, Longitude: 36.8171}

	d := similarity.Distance(a, b)
	assert.InDelta(t, 15.7, d, 0.5)
	assert.Zero(t, similarity.Distance(a, a))
}
