package extract

import (
	"context"
	"testing"

	"cvegs-matcher/pkg/core/catalog"
	"cvegs-matcher/pkg/models"
)

type fakeStore struct {
	rows map[int64][]models.CatalogRecord
}

func (f *fakeStore) LatestVersion(ctx context.Context) (int64, error) { return 1, nil }
func (f *fakeStore) LoadSnapshot(ctx context.Context, version int64) ([]models.CatalogRecord, error) {
	return f.rows[version], nil
}

func buildCache(t *testing.T, rows []models.CatalogRecord) *catalog.Cache {
	t.Helper()
	c := catalog.New(&fakeStore{rows: map[int64][]models.CatalogRecord{1: rows}})
	if err := c.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	return c
}

func TestExtract_DirectMatchAllThreeFields(t *testing.T) {
	cache := buildCache(t, []models.CatalogRecord{
		{Marca: "toyota", Submarca: "yaris", Tipveh: "auto", Modelo: 2022},
		{Marca: "honda", Submarca: "civic", Tipveh: "auto", Modelo: 2022},
	})
	e := New(cache, nil)

	fields := e.Extract(context.Background(), 2022, "toyota yaris auto sedan")

	if fields.Marca.Value != "toyota" || fields.Marca.Confidence != 1.0 {
		t.Errorf("expected direct marca match, got %+v", fields.Marca)
	}
	if fields.Submarca.Value != "yaris" || fields.Submarca.Confidence != 1.0 {
		t.Errorf("expected direct submarca match, got %+v", fields.Submarca)
	}
	if fields.Tipveh.Value != "auto" || fields.Tipveh.Confidence != 1.0 {
		t.Errorf("expected direct tipveh match, got %+v", fields.Tipveh)
	}
}

func TestExtract_EmptyIndexReturnsAllEmpty(t *testing.T) {
	cache := buildCache(t, []models.CatalogRecord{
		{Marca: "toyota", Submarca: "yaris", Tipveh: "auto", Modelo: 2021},
	})
	e := New(cache, nil)

	fields := e.Extract(context.Background(), 2022, "toyota yaris auto sedan")

	if fields.Marca.Present || fields.Submarca.Present || fields.Tipveh.Present {
		t.Errorf("expected all-empty fields for a year with no candidates, got %+v", fields)
	}
}

func TestExtract_SubmarcaRestrictedOnlyWhenMarcaIsExact(t *testing.T) {
	cache := buildCache(t, []models.CatalogRecord{
		{Marca: "toyota", Submarca: "yaris", Tipveh: "auto", Modelo: 2022},
		{Marca: "honda", Submarca: "corolla", Tipveh: "auto", Modelo: 2022},
	})
	e := New(cache, nil)

	// "corolla" belongs to honda in this catalog, but marca matched toyota
	// directly (confidence 1.0), so submarca candidates must be restricted
	// to toyota's own set and corolla must not be picked up.
	fields := e.Extract(context.Background(), 2022, "toyota corolla auto")

	if fields.Marca.Value != "toyota" {
		t.Fatalf("expected direct toyota match, got %+v", fields.Marca)
	}
	if fields.Submarca.Value == "corolla" {
		t.Errorf("expected submarca restricted to toyota's set, got corolla leak through: %+v", fields.Submarca)
	}
}

func TestShouldTriggerFallback(t *testing.T) {
	cases := []struct {
		name   string
		fields models.ExtractedFields
		want   bool
	}{
		{
			name: "all high confidence, no trigger",
			fields: models.ExtractedFields{
				Marca:    models.FieldConfidence{Present: true, Confidence: 1.0},
				Submarca: models.FieldConfidence{Present: true, Confidence: 1.0},
				Tipveh:   models.FieldConfidence{Present: true, Confidence: 1.0},
			},
			want: false,
		},
		{
			name: "marca and submarca both weak triggers",
			fields: models.ExtractedFields{
				Marca:    models.FieldConfidence{Present: true, Confidence: 0.3},
				Submarca: models.FieldConfidence{Present: true, Confidence: 0.2},
				Tipveh:   models.FieldConfidence{Present: true, Confidence: 0.9},
			},
			want: true,
		},
		{
			name: "low mean confidence triggers",
			fields: models.ExtractedFields{
				Marca:    models.FieldConfidence{Present: true, Confidence: 0.5},
				Submarca: models.FieldConfidence{Present: true, Confidence: 0.5},
				Tipveh:   models.FieldConfidence{Present: true, Confidence: 0.5},
			},
			want: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldTriggerFallback(tc.fields); got != tc.want {
				t.Errorf("ShouldTriggerFallback() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestRemoveMatched(t *testing.T) {
	got := removeMatched("toyota yaris auto", "yaris")
	want := "toyota auto"
	if got != want {
		t.Errorf("removeMatched() = %q, want %q", got, want)
	}
}

func TestRemoveMatched_NoOccurrenceIsNoop(t *testing.T) {
	got := removeMatched("toyota auto", "yaris")
	if got != "toyota auto" {
		t.Errorf("removeMatched() = %q, want unchanged input", got)
	}
}
