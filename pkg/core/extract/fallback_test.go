package extract

import (
	"context"
	"testing"

	"cvegs-matcher/pkg/models"
)

type fakeChatter struct {
	response string
	err      error
}

func (f fakeChatter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}

func TestReextract_RecoversFieldsAboveThreshold(t *testing.T) {
	cache := buildCache(t, []models.CatalogRecord{
		{Marca: "toyota", Submarca: "yaris", Tipveh: "auto", Modelo: 2022},
	})
	idx := cache.IndexForYear(2022)

	fb := NewFallback(fakeChatter{response: `{"marca":"toyota","submarca":"yaris","tipveh":"auto"}`})
	tentative := models.ExtractedFields{
		Marca:    models.FieldConfidence{Present: true, Confidence: 0.3},
		Submarca: models.FieldConfidence{Present: true, Confidence: 0.2},
		Tipveh:   models.FieldConfidence{Present: true, Confidence: 0.2},
	}

	corrected, reason := fb.Reextract(context.Background(), idx, "toyota yaris auto", tentative)

	if reason != "llm_fallback" {
		t.Fatalf("expected llm_fallback reason, got %q", reason)
	}
	if corrected.Marca.Value != "toyota" || corrected.Marca.Method != models.MethodLLMCorrected {
		t.Errorf("expected recovered marca, got %+v", corrected.Marca)
	}
	if corrected.Marca.Confidence < 0.7 || corrected.Marca.Confidence > 0.9 {
		t.Errorf("expected recovered confidence clamped to [0.7,0.9], got %.2f", corrected.Marca.Confidence)
	}
}

func TestReextract_DegradesOnChatError(t *testing.T) {
	cache := buildCache(t, []models.CatalogRecord{
		{Marca: "toyota", Submarca: "yaris", Tipveh: "auto", Modelo: 2022},
	})
	idx := cache.IndexForYear(2022)

	fb := NewFallback(fakeChatter{err: errBoom})
	tentative := models.ExtractedFields{Marca: models.FieldConfidence{Present: true, Confidence: 0.1}}

	corrected, reason := fb.Reextract(context.Background(), idx, "toyota yaris", tentative)

	if reason != "" {
		t.Errorf("expected empty reason on chat failure, got %q", reason)
	}
	if corrected.Marca.Confidence != tentative.Marca.Confidence {
		t.Errorf("expected tentative result unchanged on failure, got %+v", corrected.Marca)
	}
}

func TestRecoverField_RejectsBelowThreshold(t *testing.T) {
	original := models.FieldConfidence{Present: true, Confidence: 0.2}
	got := recoverField("zzzznotreal", []string{"toyota", "honda"}, original)
	if got != original {
		t.Errorf("expected original field kept when no candidate is close enough, got %+v", got)
	}
}

var errBoom = errFixture("boom")

type errFixture string

func (e errFixture) Error() string { return string(e) }
