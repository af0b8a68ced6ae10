package catalog

import "cvegs-matcher/pkg/models"

// FreqEntry is one marca's hierarchical frequency summary for a year,
// used to build the LLM fallback prompt.
type FreqEntry struct {
	Total     int
	Submarcas map[string]int
	Tipvehs   map[string]struct{}
}

// CandidateIndex is the per-year derived view of the catalog: distinct
// value sets for marca/submarca/tipveh, the marca->submarca relation, and
// the hierarchical frequency table.
type CandidateIndex struct {
	Year int

	MarcaSet   map[string]struct{}
	SubmarcaSet map[string]struct{}
	TipvehSet  map[string]struct{}

	// SubmarcaByMarca maps a marca value to its set of observed submarcas
	// for this year.
	SubmarcaByMarca map[string]map[string]struct{}

	// Freq is the hierarchical frequency table keyed by marca.
	Freq map[string]*FreqEntry
}

func emptyIndex() *CandidateIndex {
	return &CandidateIndex{
		MarcaSet:        make(map[string]struct{}),
		SubmarcaSet:     make(map[string]struct{}),
		TipvehSet:       make(map[string]struct{}),
		SubmarcaByMarca: make(map[string]map[string]struct{}),
		Freq:            make(map[string]*FreqEntry),
	}
}

// buildCandidateIndex derives the CandidateIndex for a single year from the
// snapshot. Idempotent and side-effect free: concurrent first-readers
// computing this redundantly produce equal results.
func buildCandidateIndex(snap *models.CatalogSnapshot, year int) *CandidateIndex {
	idx := emptyIndex()
	idx.Year = year

	for _, rec := range snap.RecordsForYear(year) {
		if rec.Marca != "" {
			idx.MarcaSet[rec.Marca] = struct{}{}
		}
		if rec.Submarca != "" {
			idx.SubmarcaSet[rec.Submarca] = struct{}{}
		}
		if rec.Tipveh != "" {
			idx.TipvehSet[rec.Tipveh] = struct{}{}
		}

		if rec.Marca != "" && rec.Submarca != "" {
			set, ok := idx.SubmarcaByMarca[rec.Marca]
			if !ok {
				set = make(map[string]struct{})
				idx.SubmarcaByMarca[rec.Marca] = set
			}
			set[rec.Submarca] = struct{}{}
		}

		if rec.Marca != "" {
			entry, ok := idx.Freq[rec.Marca]
			if !ok {
				entry = &FreqEntry{Submarcas: make(map[string]int), Tipvehs: make(map[string]struct{})}
				idx.Freq[rec.Marca] = entry
			}
			entry.Total++
			if rec.Submarca != "" {
				entry.Submarcas[rec.Submarca]++
			}
			if rec.Tipveh != "" {
				entry.Tipvehs[rec.Tipveh] = struct{}{}
			}
		}
	}

	return idx
}

// Empty reports whether the index has no candidates for any field — the
// signal the field extractor uses to short-circuit to an all-empty result.
func (idx *CandidateIndex) Empty() bool {
	return len(idx.MarcaSet) == 0 && len(idx.SubmarcaSet) == 0 && len(idx.TipvehSet) == 0
}

// SortedCandidates returns the candidate set as a slice sorted by length
// descending, ties broken lexicographically — the longest-first order the
// field-match procedure's direct-substring stage requires, and a fixed scan
// order for its fuzzy stage.
func SortedCandidates(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sortByLengthDescThenLex(out)
	return out
}

func sortByLengthDescThenLex(vals []string) {
	// insertion sort: candidate sets are small (tens to low hundreds of
	// distinct values per year), and determinism matters more than asymptotics
	for i := 1; i < len(vals); i++ {
		j := i
		for j > 0 && less(vals[j], vals[j-1]) {
			vals[j], vals[j-1] = vals[j-1], vals[j]
			j--
		}
	}
}

func less(a, b string) bool {
	if len(a) != len(b) {
		return len(a) > len(b) // longer first
	}
	return a < b // then lexicographic
}
