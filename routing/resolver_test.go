package routing_test

import (
	"os"
	"path/filepath"
	"testing"

	"emwananchi-core/models"
	"emwananchi-core/routing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUnits() []routing.Unit {
	return []routing.Unit{
		{
			ID:         "nairobi-roads",
			Name:       "Nairobi County Roads and Transport",
			Categories: []models.ReportCategory{models.Roads, models.Lighting},
			Bounds:     routing.Bounds{MinLat: -1.45, MaxLat: -1.15, MinLng: 36.65, MaxLng: 37.10},
		},
		{
			ID:         "nairobi-services",
			Name:       "Nairobi County Public Service",
			Categories: []models.ReportCategory{models.Health, models.Education, models.Other},
			Bounds:     routing.Bounds{MinLat: -1.45, MaxLat: -1.15, MinLng: 36.65, MaxLng: 37.10},
		},
	}
}

func TestRoute(t *testing.T) {
	r := routing.NewResolver(testUnits())
	nairobi := models.GeoPoint{Latitude: -1.286, Longitude: 36.817}

	tests := []struct {
		name     string
		category models.ReportCategory
		loc      models.GeoPoint
		want     string
		wantErr  bool
	}{
		{"roads in bounds", models.Roads, nairobi, "nairobi-roads", false},
		{"lighting shares the roads unit", models.Lighting, nairobi, "nairobi-roads", false},
		{"other goes to services", models.Other, nairobi, "nairobi-services", false},
		{"category nobody covers", models.Water, nairobi, "", true},
		{"location outside all bounds", models.Roads, models.GeoPoint{Latitude: -4.05, Longitude: 39.67}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Route(tt.category, tt.loc)
			if tt.wantErr {
				assert.ErrorIs(t, err, routing.ErrNoJurisdiction)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadFileAndReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jurisdictions.yaml")

	initial := `
units:
  - id: nairobi-roads
    name: Nairobi County Roads and Transport
    categories: [roads]
    bounds: {minLat: -1.45, maxLat: -1.15, minLng: 36.65, maxLng: 37.10}
`
	require.NoError(t, os.WriteFile(path, []byte(initial), 0o644))

	r, err := routing.LoadFile(path)
	require.NoError(t, err)

	unit, err := r.Route(models.Roads, models.GeoPoint{Latitude: -1.286, Longitude: 36.817})
	require.NoError(t, err)
	assert.Equal(t, "nairobi-roads", unit)

	_, err = r.Route(models.Water, models.GeoPoint{Latitude: -1.286, Longitude: 36.817})
	assert.ErrorIs(t, err, routing.ErrNoJurisdiction)

	updated := `
units:
  - id: nairobi-water
    name: Nairobi County Environment and Water
    categories: [water]
    bounds: {minLat: -1.45, maxLat: -1.15, minLng: 36.65, maxLng: 37.10}
`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	require.NoError(t, r.Reload(path))

	unit, err = r.Route(models.Water, models.GeoPoint{Latitude: -1.286, Longitude: 36.817})
	require.NoError(t, err)
	assert.Equal(t, "nairobi-water", unit)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := routing.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.yaml")
	require.NoError(t, os.WriteFile(empty, []byte("units: []\n"), 0o644))
	_, err = routing.LoadFile(empty)
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("units: {not: a list}\n"), 0o644))
	_, err = routing.LoadFile(bad)
	assert.Error(t, err)
}

func TestReloadKeepsOldTableOnError(t *testing.T) {
	r := routing.NewResolver(testUnits())
	require.Error(t, r.Reload("/does/not/exist.yaml"))

	unit, err := r.Route(models.Roads, models.GeoPoint{Latitude: -1.286, Longitude: 36.817})
	require.NoError(t, err)
	assert.Equal(t, "nairobi-roads", unit)
}
