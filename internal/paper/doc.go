// Package paper defines the paper record, its lifecycle state machine, and
// the single-file record store backing the orchestrators.
//
// The store favors availability: an unreadable record file loads as an empty
// set rather than failing, and every mutation rewrites the whole file under
// an advisory lock so readers never observe a partially merged set.
package paper
