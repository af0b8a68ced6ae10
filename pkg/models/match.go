package models

// Candidate is a scored catalog record competing for a single match request.
// Scoring slots are filled in by the stage whose name they carry; final_score
// is assigned only by the score mixer, never by the filter.
type Candidate struct {
	CVEGS    string `json:"cvegs"`
	Marca    string `json:"marca"`
	Submarca string `json:"submarca"`
	Modelo   int    `json:"modelo"`
	Descveh  string `json:"descveh"`
	Tipveh   string `json:"tipveh"`

	Embedding []float32 `json:"-"`

	FilterScore     float64 `json:"filter_score"`
	FuzzyScore      float64 `json:"fuzzy_score"`
	SimilarityScore float64 `json:"similarity_score"`
	LLMScore        float64 `json:"llm_score"`
	FinalScore      float64 `json:"final_score"`

	Quality string `json:"quality"` // "high"|"medium"|"low"|"very_low", set at decision time
}

// Decision is the outcome category of a match.
type Decision string

const (
	DecisionAutoAccept  Decision = "auto_accept"
	DecisionNeedsReview Decision = "needs_review"
	DecisionNoMatch     Decision = "no_match"
)

// MatchResult is the single match operation's output.
type MatchResult struct {
	Decision        Decision    `json:"decision"`
	SuggestedCVEGS  *string     `json:"suggested_cvegs"`
	Confidence      float64     `json:"confidence"`
	ExtractedFields ExtractedFields `json:"extracted_fields"`
	Candidates      []Candidate `json:"candidates"`
	ProcessingMs    float64     `json:"processing_time_ms"`
	Diagnostics     *Diagnostics `json:"diagnostics,omitempty"`
}

// Diagnostics is populated only when the caller's request sets the debug
// flag. It records per-stage timing and the fallback path taken.
type Diagnostics struct {
	RequestID         string             `json:"request_id"`
	PreprocessMs      float64            `json:"preprocess_ms"`
	ExtractMs         float64            `json:"extract_ms"`
	FilterMs          float64            `json:"filter_ms"`
	RerankMs          float64            `json:"rerank_ms"`
	LLMRescoreMs      float64            `json:"llm_rescore_ms"`
	MixMs             float64            `json:"mix_ms"`
	FilterFallbackTag string             `json:"filter_fallback_tag"`
	RawExtraction     *ExtractedFields   `json:"raw_extraction,omitempty"`
	LLMFallbackUsed   bool               `json:"llm_fallback_used"`
	LLMFallbackReason string             `json:"llm_fallback_reason,omitempty"`
	Notes             []string           `json:"notes,omitempty"`
}
