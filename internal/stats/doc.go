// Package stats holds the per-gene hypothesis test primitives. Every function
// is vectorized over genes and reports degenerate genes as NaN instead of
// returning an error.
package stats
