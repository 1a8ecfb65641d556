// Package diag carries diagnostics between compiler phases.
//
// Diagnostics accumulate in Bags. A Bag belongs to exactly one unit of
// work at a time; concurrent workers each fill their own Bag and the
// parent merges them after joining, which keeps per-member diagnostic
// sets independent of scheduling order.
package diag
