package themes

// ResolveVotes determines the winning theme from votes in cast order.
// The winner is the theme with the most votes; on a tie, the first theme
// to have reached the winning count wins. This keeps the outcome
// deterministic regardless of map iteration order.
func ResolveVotes(castOrder []string) string {
	if len(castOrder) == 0 {
		return ""
	}

	counts := make(map[string]int, len(castOrder))
	best, bestCount := "", 0
	for _, theme := range castOrder {
		counts[theme]++
		// Strictly greater: an earlier theme keeps the lead on ties.
		if counts[theme] > bestCount {
			best, bestCount = theme, counts[theme]
		}
	}
	return best
}
