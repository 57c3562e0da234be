// Package similarity finds existing issues that look like the problem a new
// report describes. Candidate generation is gated on geographic proximity
// and exact category, then ranked by a pluggable text-similarity scorer
// blended with proximity.
package similarity

import (
	"math"
	"sort"
	"sync"
	"time"

	"emwananchi-core/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Candidate is one ranked duplicate candidate.
type Candidate struct {
	IssueID primitive.ObjectID
	Score   float64
}

type entry struct {
	id        primitive.ObjectID
	category  models.ReportCategory
	centroid  models.GeoPoint
	desc      string
	createdAt time.Time
	cell      cellKey
}

type cellKey struct {
	latIdx int
	lngIdx int
}

// Index is an in-memory spatial grid over the non-terminal issues. Cells are
// sized to the search radius, so a candidate lookup only touches the 3x3
// neighborhood of the report's cell. The index is derived state, rebuilt
// from the issue store on startup.
//
// The fixed-degree grid is tuned for low and mid latitudes; a cell spans
// fewer east-west meters toward the poles.
type Index struct {
	mu         sync.RWMutex
	radius     float64 // meters
	cellSize   float64 // degrees
	geoWeight  float64
	textWeight float64
	scorer     Scorer
	cells      map[cellKey]map[primitive.ObjectID]*entry
	byID       map[primitive.ObjectID]*entry
}

const metersPerDegree = 111320.0

// NewIndex builds an empty index. Scores blend proximity and text
// similarity with the given weights; weights are normalized to sum to 1.
func NewIndex(radiusMeters, geoWeight, textWeight float64, scorer Scorer) *Index {
	total := geoWeight + textWeight
	if total <= 0 {
		geoWeight, textWeight, total = 0.5, 0.5, 1
	}
	return &Index{
		radius:     radiusMeters,
		cellSize:   radiusMeters / metersPerDegree,
		geoWeight:  geoWeight / total,
		textWeight: textWeight / total,
		scorer:     scorer,
		cells:      make(map[cellKey]map[primitive.ObjectID]*entry),
		byID:       make(map[primitive.ObjectID]*entry),
	}
}

// CellOf returns the grid cell containing p. The aggregator keys its region
// locks by the same cells.
func (ix *Index) CellOf(p models.GeoPoint) (int, int) {
	return int(math.Floor(p.Latitude / ix.cellSize)), int(math.Floor(p.Longitude / ix.cellSize))
}

// Insert adds a new issue to the grid. The first member report's
// description becomes the issue's representative text.
func (ix *Index) Insert(issue *models.Issue, representative string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	latIdx, lngIdx := ix.CellOf(issue.Centroid)
	e := &entry{
		id:        issue.ID,
		category:  issue.Category,
		centroid:  issue.Centroid,
		desc:      representative,
		createdAt: issue.CreatedAt,
		cell:      cellKey{latIdx, lngIdx},
	}
	ix.placeLocked(e)
}

// UpdateCentroid moves an issue after a merge shifted its centroid,
// rehoming it if it crossed a cell boundary.
func (ix *Index) UpdateCentroid(id primitive.ObjectID, centroid models.GeoPoint) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.byID[id]
	if !ok {
		return
	}
	e.centroid = centroid

	latIdx, lngIdx := ix.CellOf(centroid)
	key := cellKey{latIdx, lngIdx}
	if key == e.cell {
		return
	}
	delete(ix.cells[e.cell], id)
	e.cell = key
	ix.placeLocked(e)
}

// Remove drops an issue, called when it enters a terminal status.
func (ix *Index) Remove(id primitive.ObjectID) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	e, ok := ix.byID[id]
	if !ok {
		return
	}
	delete(ix.cells[e.cell], id)
	delete(ix.byID, id)
}

func (ix *Index) placeLocked(e *entry) {
	bucket, ok := ix.cells[e.cell]
	if !ok {
		bucket = make(map[primitive.ObjectID]*entry)
		ix.cells[e.cell] = bucket
	}
	bucket[e.id] = e
	ix.byID[e.id] = e
}

// FindCandidates returns issues within the radius of the report's location
// with the same category, ordered by descending score. Exact score ties
// rank the most recently created issue first.
func (ix *Index) FindCandidates(report *models.Report) []Candidate {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	latIdx, lngIdx := ix.CellOf(report.Location)

	type scored struct {
		Candidate
		createdAt time.Time
	}
	var matches []scored

	for dLat := -1; dLat <= 1; dLat++ {
		for dLng := -1; dLng <= 1; dLng++ {
			for _, e := range ix.cells[cellKey{latIdx + dLat, lngIdx + dLng}] {
				if e.category != report.Category {
					continue
				}
				dist := Distance(report.Location, e.centroid)
				if dist > ix.radius {
					continue
				}
				proximity := 1 - dist/ix.radius
				text := ix.scorer.Score(report.Description, e.desc)
				matches = append(matches, scored{
					Candidate: Candidate{
						IssueID: e.id,
						Score:   ix.geoWeight*proximity + ix.textWeight*text,
					},
					createdAt: e.createdAt,
				})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		// Recency favors active issues over stale near-duplicates.
		if !matches[i].createdAt.Equal(matches[j].createdAt) {
			return matches[i].createdAt.After(matches[j].createdAt)
		}
		return matches[i].IssueID.Hex() > matches[j].IssueID.Hex()
	})

	out := make([]Candidate, len(matches))
	for i, m := range matches {
		out[i] = m.Candidate
	}
	return out
}

// Rebuild reloads the grid from the issue store's active issues. The
// representative description for each issue comes from the lookup function,
// typically the first member report's text.
func (ix *Index) Rebuild(issues []models.Issue, representative func(issue *models.Issue) string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.cells = make(map[cellKey]map[primitive.ObjectID]*entry)
	ix.byID = make(map[primitive.ObjectID]*entry)

	for i := range issues {
		issue := &issues[i]
		if issue.Status.Terminal() {
			continue
		}
		latIdx, lngIdx := ix.CellOf(issue.Centroid)
		ix.placeLocked(&entry{
			id:        issue.ID,
			category:  issue.Category,
			centroid:  issue.Centroid,
			desc:      representative(issue),
			createdAt: issue.CreatedAt,
			cell:      cellKey{latIdx, lngIdx},
		})
	}
}
