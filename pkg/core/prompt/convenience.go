package prompt

// Convenience functions for common prompt operations

// GetExtractionPrompt returns the catalog-constrained re-extraction prompt
// used by the LLM fallback.
func GetExtractionPrompt(name string) (string, error) {
	id := "extraction." + name
	return Get().GetSystemPrompt(id)
}

// GetPreprocessPrompt returns a field-role identification prompt, used when
// scoring can't confidently tell year and description fields apart.
func GetPreprocessPrompt(name string) (string, error) {
	id := "preprocess." + name
	return Get().GetSystemPrompt(id)
}

// GetScorePrompt returns a candidate rescoring prompt.
func GetScorePrompt(name string) (string, error) {
	id := "score." + name
	return Get().GetSystemPrompt(id)
}

// MustGetExtractionPrompt is like GetExtractionPrompt but panics on error
func MustGetExtractionPrompt(name string) string {
	p, err := GetExtractionPrompt(name)
	if err != nil {
		panic(err)
	}
	return p
}

// PromptIDs contains all known prompt identifiers used by the matching pipeline
var PromptIDs = struct {
	ExtractionFallback string // catalog-constrained re-extraction of marca/submarca/tipveh
	PreprocessFieldID  string // LLM-assisted field-role identification
	ScoreRescore       string // batched candidate confidence scoring
}{
	ExtractionFallback: "extraction.fallback",
	PreprocessFieldID:  "preprocess.field_identification",
	ScoreRescore:       "score.rescore",
}
