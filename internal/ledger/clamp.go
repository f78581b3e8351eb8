package ledger

// NextValue computes a new found quantity from current and a signed delta,
// clamped to [0, max]. Out-of-range deltas are silently clamped.
//
// A delta of -current resets the item and a delta of max-current completes it;
// both land exactly on the bound.
func NextValue(current, delta, max int) int {
	if max < 0 {
		max = 0
	}
	next := current + delta
	if next > max {
		next = max
	}
	if next < 0 {
		next = 0
	}
	return next
}
