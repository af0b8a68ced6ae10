package preprocess

import (
	"context"
	"testing"
	"time"
)

func TestProcess_ResolvesYearAndDescriptionByScore(t *testing.T) {
	p := New(1950, 2030, nil)
	rows := map[string]Row{
		"0": {"anio": "2022", "descripcion": "toyota yaris auto sedan", "vin": "1HGCM82633A123456"},
		"1": {"anio": "2019", "descripcion": "honda civic sedan auto", "vin": "2HGCM82633A654321"},
	}

	resolved, err := p.Process(context.Background(), rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved["0"].Year != 2022 {
		t.Errorf("expected year 2022, got %d", resolved["0"].Year)
	}
	if resolved["0"].Description == "" {
		t.Errorf("expected a non-empty resolved description")
	}
}

func TestProcess_DropsRowsThatFailToParseTheYearField(t *testing.T) {
	p := New(1950, 2030, nil)
	rows := map[string]Row{
		"0": {"anio": "2022", "descripcion": "toyota yaris auto sedan"},
		"1": {"anio": "not-a-year", "descripcion": "honda civic auto sedan"},
	}

	resolved, err := p.Process(context.Background(), rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := resolved["1"]; ok {
		t.Errorf("expected row 1 to be dropped for an unparseable year")
	}
	if _, ok := resolved["0"]; !ok {
		t.Errorf("expected row 0 to resolve")
	}
}

func TestProcess_EmptyRowsReturnsEmptyMap(t *testing.T) {
	p := New(1950, 2030, nil)
	resolved, err := p.Process(context.Background(), map[string]Row{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resolved) != 0 {
		t.Errorf("expected an empty result for no input rows, got %+v", resolved)
	}
}

func TestYearScore_ScoresFractionOfParsableValues(t *testing.T) {
	p := New(1950, 2030, nil)
	rows := map[string]Row{
		"0": {"anio": "2022"},
		"1": {"anio": "2019"},
		"2": {"anio": "oops"},
	}
	got := p.yearScore(rows, "anio")
	want := 2.0 / 3.0
	if got != want {
		t.Errorf("yearScore() = %.4f, want %.4f", got, want)
	}
}

func TestDescriptionScore_PenalizesLikelyIDsAndNumericValues(t *testing.T) {
	idRows := map[string]Row{"0": {"vin": "1HGCM82633A123456"}}
	descRows := map[string]Row{"0": {"descripcion": "toyota yaris auto sedan"}}

	idScore := descriptionScore(idRows, "vin")
	descScore := descriptionScore(descRows, "descripcion")

	if idScore >= descScore {
		t.Errorf("expected ID-like field to score lower than a real description: id=%.2f desc=%.2f", idScore, descScore)
	}
}

func TestIsLikelyID(t *testing.T) {
	cases := map[string]bool{
		"1HGCM82633A123456": true,
		"toyota yaris":       false,
		"short":              false,
		"ABCDEF":             true,
	}
	for val, want := range cases {
		if got := isLikelyID(val); got != want {
			t.Errorf("isLikelyID(%q) = %v, want %v", val, got, want)
		}
	}
}

func TestConsultLLM_RejectsExpiredDeadline(t *testing.T) {
	p := New(1950, 2030, fakeChatter{response: `{"year_field":"anio","description_field":"descripcion"}`})
	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, _, err := p.consultLLM(ctx, nil, []string{"anio", "descripcion"}, nil, nil)
	if err == nil {
		t.Error("expected an error for an already-expired deadline")
	}
}

func TestConsultLLM_IgnoresFieldNamesNotInTheRow(t *testing.T) {
	p := New(1950, 2030, fakeChatter{response: `{"year_field":"unknown_field","description_field":"descripcion"}`})
	yearField, descField, err := p.consultLLM(context.Background(), nil, []string{"anio", "descripcion"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if yearField != "" {
		t.Errorf("expected year_field suggestion outside the known set to be rejected, got %q", yearField)
	}
	if descField != "descripcion" {
		t.Errorf("expected description_field to resolve, got %q", descField)
	}
}

func TestExtractJSONField(t *testing.T) {
	raw := `{"year_field": "anio", "description_field": "descripcion"}`
	if got := extractJSONField(raw, "year_field"); got != "anio" {
		t.Errorf("extractJSONField(year_field) = %q, want anio", got)
	}
	if got := extractJSONField(raw, "missing_field"); got != "" {
		t.Errorf("extractJSONField(missing_field) = %q, want empty", got)
	}
}

type fakeChatter struct {
	response string
	err      error
}

func (f fakeChatter) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return f.response, f.err
}
