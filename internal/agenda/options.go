// Package agenda merges partial agenda updates into stored agendas.
//
// The merge is defensive: absent fields never overwrite stored values, detail
// lists only grow, and CheckDeletions rejects any merged tree in which an
// item's details shrank. Every function here is pure and returns new values;
// the stored tree passed in is never modified.
package agenda

// Options tunes identity resolution for items sent without an id.
type Options struct {
	// HeuristicMatch lets an id-less incoming item merge into a stored item
	// whose (title, time) pair matches case-insensitively. When false, id-less
	// items are always inserted as new.
	HeuristicMatch bool
}

// DefaultOptions returns the options used by the API unless configured otherwise.
func DefaultOptions() Options {
	return Options{HeuristicMatch: true}
}
