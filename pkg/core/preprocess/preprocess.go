// Package preprocess implements the preprocessor: it accepts a
// heterogeneous row (or batch of rows) with unknown field names and
// resolves which field holds the model year and which holds the free-text
// description, consulting the model only when scoring is ambiguous.
package preprocess

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cvegs-matcher/pkg/core/normalize"
	"cvegs-matcher/pkg/core/prompt"
)

// Chatter is the narrow LLM contract used when field identification is
// ambiguous.
type Chatter interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Row is one heterogeneous input record, field name to raw value.
type Row map[string]string

// Resolved is a preprocessed row ready for field extraction.
type Resolved struct {
	Year        int
	Description string
}

const (
	minFieldScore = 0.5 // a role must clear this score to be picked without LLM help
)

// Preprocessor resolves year/description field roles across a batch of
// heterogeneous rows.
type Preprocessor struct {
	minYear, maxYear int
	chat             Chatter
}

// New builds a Preprocessor. maxYear is typically currentYear+futureYearsAhead.
func New(minYear, maxYear int, chat Chatter) *Preprocessor {
	return &Preprocessor{minYear: minYear, maxYear: maxYear, chat: chat}
}

// Process accepts rows keyed by row id (a single record is wrapped by the
// caller under key "0") and returns resolved (year, description) pairs,
// dropping rows that fail to parse once the field mapping is chosen.
func (p *Preprocessor) Process(ctx context.Context, rows map[string]Row) (map[string]Resolved, error) {
	if len(rows) == 0 {
		return map[string]Resolved{}, nil
	}

	fieldNames := collectFieldNames(rows)
	yearScores := make(map[string]float64, len(fieldNames))
	descScores := make(map[string]float64, len(fieldNames))
	for _, name := range fieldNames {
		yearScores[name] = p.yearScore(rows, name)
		descScores[name] = descriptionScore(rows, name)
	}

	yearField := topField(yearScores)
	descField := topField(descScores)

	if yearScores[yearField] < minFieldScore || descScores[descField] < minFieldScore || yearField == descField {
		resolvedYear, resolvedDesc, err := p.consultLLM(ctx, rows, fieldNames, yearScores, descScores)
		if err == nil {
			if resolvedYear != "" {
				yearField = resolvedYear
			}
			if resolvedDesc != "" {
				descField = resolvedDesc
			}
		}
	}

	out := make(map[string]Resolved, len(rows))
	for id, row := range rows {
		yearRaw, ok := row[yearField]
		if !ok {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(yearRaw))
		if err != nil {
			continue
		}
		desc, ok := row[descField]
		if !ok {
			continue
		}
		out[id] = Resolved{Year: year, Description: normalize.Normalize(desc)}
	}
	return out, nil
}

func collectFieldNames(rows map[string]Row) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, row := range rows {
		for name := range row {
			if _, ok := seen[name]; !ok {
				seen[name] = struct{}{}
				names = append(names, name)
			}
		}
	}
	return names
}

// yearScore is the fraction of a field's values across all rows that parse
// as an integer within [minYear, maxYear].
func (p *Preprocessor) yearScore(rows map[string]Row, field string) float64 {
	total, hits := 0, 0
	for _, row := range rows {
		val, ok := row[field]
		if !ok {
			continue
		}
		total++
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err == nil && n >= p.minYear && n <= p.maxYear {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

var vehicleVocabulary = []string{
	"auto", "camion", "camioneta", "pickup", "sedan", "hatchback", "coupe",
	"moto", "motocicleta", "tracto", "furgon", "van", "suv", "truck",
}

// descriptionScore heuristically favors longer free-text fields containing
// vehicle vocabulary over numeric-only or all-uppercase-ID fields.
func descriptionScore(rows map[string]Row, field string) float64 {
	total, score := 0, 0.0
	for _, row := range rows {
		val, ok := row[field]
		if !ok {
			continue
		}
		total++
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			continue
		}
		if _, err := strconv.Atoi(trimmed); err == nil {
			continue // numeric-only values can't be descriptions
		}
		if isLikelyID(trimmed) {
			continue
		}

		rowScore := lengthScore(trimmed)
		lower := strings.ToLower(trimmed)
		for _, kw := range vehicleVocabulary {
			if strings.Contains(lower, kw) {
				rowScore += 0.3
				break
			}
		}
		if rowScore > 1 {
			rowScore = 1
		}
		score += rowScore
	}
	if total == 0 {
		return 0
	}
	return score / float64(total)
}

func lengthScore(s string) float64 {
	n := len(strings.Fields(s))
	switch {
	case n >= 3:
		return 0.7
	case n == 2:
		return 0.5
	case n == 1:
		return 0.2
	default:
		return 0
	}
}

// isLikelyID flags all-uppercase alphanumeric tokens with no spaces (VINs,
// policy numbers, SKUs) as non-description values.
func isLikelyID(s string) bool {
	if strings.Contains(s, " ") {
		return false
	}
	hasLower := strings.ToUpper(s) != s
	return !hasLower && len(s) >= 6
}

func topField(scores map[string]float64) string {
	best, bestScore := "", -1.0
	for name, score := range scores {
		if score > bestScore || (score == bestScore && name < best) {
			best, bestScore = name, score
		}
	}
	return best
}

// consultLLM asks the model to pick the year/description fields given a
// compact sample and the score table, honoring ctx's deadline.
func (p *Preprocessor) consultLLM(ctx context.Context, rows map[string]Row, fieldNames []string, yearScores, descScores map[string]float64) (string, string, error) {
	if p.chat == nil {
		return "", "", fmt.Errorf("no LLM configured for field identification")
	}

	deadline, ok := ctx.Deadline()
	if ok && time.Until(deadline) <= 0 {
		return "", "", fmt.Errorf("deadline exceeded before field identification consult")
	}

	var b strings.Builder
	b.WriteString("Field scores (year_score, description_score):\n")
	for _, name := range fieldNames {
		fmt.Fprintf(&b, "- %s: year=%.2f desc=%.2f\n", name, yearScores[name], descScores[name])
	}
	b.WriteString("\nSample rows:\n")
	n := 0
	for _, row := range rows {
		if n >= 5 {
			break
		}
		fmt.Fprintf(&b, "%v\n", map[string]string(row))
		n++
	}
	b.WriteString("\nRespond with strict JSON: {\"year_field\": \"...\", \"description_field\": \"...\"}")

	sys, err := prompt.GetPreprocessPrompt("field_identification")
	if err != nil {
		sys = fieldIdentificationSystemPrompt
	}

	raw, err := p.chat.Complete(ctx, sys, b.String())
	if err != nil {
		return "", "", err
	}

	yearField := extractJSONField(raw, "year_field")
	descField := extractJSONField(raw, "description_field")
	if !contains(fieldNames, yearField) {
		yearField = ""
	}
	if !contains(fieldNames, descField) {
		descField = ""
	}
	return yearField, descField, nil
}

func contains(vals []string, v string) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

// extractJSONField does a minimal, dependency-free lookup of a top-level
// string field out of a JSON-ish response; field identification only needs
// two keys, so a full repair+unmarshal round trip would be unnecessary.
func extractJSONField(raw, key string) string {
	marker := `"` + key + `"`
	idx := strings.Index(raw, marker)
	if idx < 0 {
		return ""
	}
	rest := raw[idx+len(marker):]
	colon := strings.Index(rest, ":")
	if colon < 0 {
		return ""
	}
	rest = strings.TrimSpace(rest[colon+1:])
	if !strings.HasPrefix(rest, `"`) {
		return ""
	}
	rest = rest[1:]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return ""
	}
	return rest[:end]
}

const fieldIdentificationSystemPrompt = `You identify which field in a vehicle-insurance data row holds the model year and which holds the free-text vehicle description. Respond only with the requested JSON.`
