// Package filter narrows a year's catalog candidates to those matching the
// extracted fields, falling back progressively through a defined clause
// order when a tier over-constrains the result to nothing.
package filter

import (
	"cvegs-matcher/pkg/models"
)

const highConfidenceThreshold = 0.9

// clauseSet is which of marca/submarca/tipveh are applied as equality
// filters for one attempt.
type clauseSet struct {
	useMarca, useSubmarca, useTipveh bool
	tag                              string
}

// fallbackOrder is tried in sequence until a non-empty candidate set is
// found: full clause set first, then progressively drop the weakest/most
// specific clauses.
var fallbackOrder = []clauseSet{
	{useMarca: true, useSubmarca: true, useTipveh: true, tag: "full"},
	{useMarca: true, useSubmarca: false, useTipveh: true, tag: "dropped_submarca"},
	{useMarca: true, useSubmarca: false, useTipveh: false, tag: "dropped_submarca_tipveh"},
	{useMarca: false, useSubmarca: false, useTipveh: true, tag: "dropped_submarca_marca"},
	{useMarca: false, useSubmarca: false, useTipveh: false, tag: "dropped_all"},
}

// Result is the filtered candidate set plus which fallback tier produced it.
type Result struct {
	Candidates []models.Candidate
	Tag        string
}

// Filter runs the fallback sequence against records and returns the first
// tier that yields a non-empty result, or an empty Result with tag
// "dropped_all" if even the unconstrained tier is empty.
func Filter(records []models.CatalogRecord, fields models.ExtractedFields) Result {
	for _, clauses := range fallbackOrder {
		matches := applyClauses(records, fields, clauses)
		if len(matches) > 0 || clauses.tag == "dropped_all" {
			return Result{Candidates: matches, Tag: clauses.tag}
		}
	}
	return Result{Candidates: nil, Tag: "dropped_all"}
}

// filterable reports whether a field is confident enough to constrain the
// candidate set at all; fields below the high-confidence threshold never
// become filter clauses, even in the "full" tier.
func filterable(f models.FieldConfidence) bool {
	return f.Present && f.Confidence >= highConfidenceThreshold
}

func applyClauses(records []models.CatalogRecord, fields models.ExtractedFields, clauses clauseSet) []models.Candidate {
	var out []models.Candidate
	score := filterScore(fields, clauses)
	for _, rec := range records {
		if clauses.useMarca && filterable(fields.Marca) && rec.Marca != fields.Marca.Value {
			continue
		}
		if clauses.useSubmarca && filterable(fields.Submarca) && rec.Submarca != fields.Submarca.Value {
			continue
		}
		if clauses.useTipveh && filterable(fields.Tipveh) && rec.Tipveh != fields.Tipveh.Value {
			continue
		}

		out = append(out, models.Candidate{
			CVEGS:       rec.CVEGS,
			Marca:       rec.Marca,
			Submarca:    rec.Submarca,
			Modelo:      rec.Modelo,
			Descveh:     rec.Descveh,
			Tipveh:      rec.Tipveh,
			Embedding:   rec.Embedding,
			FilterScore: score,
		})
	}
	return out
}

// filterScore scores a clause tier by how many high-confidence fields it
// actually applied as clauses, not by how many the tier nominally selects:
// a field the tier would use but that falls below the confidence threshold
// never constrained the result, so it doesn't earn credit either. The
// mixer, never the filter, assigns FinalScore.
func filterScore(fields models.ExtractedFields, clauses clauseSet) float64 {
	n := 0
	if clauses.useMarca && filterable(fields.Marca) {
		n++
	}
	if clauses.useSubmarca && filterable(fields.Submarca) {
		n++
	}
	if clauses.useTipveh && filterable(fields.Tipveh) {
		n++
	}
	switch {
	case n >= 2:
		return 1.0
	case n == 1:
		return 0.95
	default:
		return 0.8
	}
}
