// Package matcherr enumerates the abstract error kinds the matching core can
// surface to callers. Most failures recover locally via a fallback path
// (extraction, filtering, reranking, scoring) and never reach this package;
// only genuine input errors and configuration errors propagate.
package matcherr

import "errors"

// Kind classifies an error for callers that need to branch on it (e.g. an
// HTTP layer mapping InvalidInput to 400 and InternalInvariant to 500 at
// startup).
type Kind int

const (
	// KindInvalidInput: missing year or description. No pipeline work is done.
	KindInvalidInput Kind = iota
	// KindNoCatalogData: the active snapshot has no rows for the requested year.
	KindNoCatalogData
	// KindExternalTransient: an LLM or embedding call failed or timed out.
	// Never propagated past the component that hit it; listed here only so
	// diagnostics can record which kind of degradation occurred.
	KindExternalTransient
	// KindSnapshotStale: a catalog refresh failed; the previous snapshot
	// remains in service. Not user-visible — logged only.
	KindSnapshotStale
	// KindInternalInvariant: unreachable in a correctly configured deployment
	// (e.g. weights don't sum to 1). Surfaced at startup, never at request time.
	KindInternalInvariant
)

func (k Kind) String() string {
	switch k {
	case KindInvalidInput:
		return "invalid_input"
	case KindNoCatalogData:
		return "no_catalog_data"
	case KindExternalTransient:
		return "external_transient"
	case KindSnapshotStale:
		return "snapshot_stale"
	case KindInternalInvariant:
		return "internal_invariant"
	default:
		return "unknown"
	}
}

// Error wraps an underlying cause with a Kind so callers can type-switch
// via errors.As without string-matching messages.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a matcherr.Error of the given kind.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds a matcherr.Error of the given kind around an existing error.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether err is a matcherr.Error of the given kind.
func Is(err error, kind Kind) bool {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind == kind
	}
	return false
}
