package stats

// TieBreak selects among equally frequent values when computing a mode.
type TieBreak string

const (
	// TieBreakFirst keeps, among the most frequent values, the one whose
	// first occurrence comes earliest in input order.
	TieBreakFirst TieBreak = "first"
	// TieBreakLexical keeps the lexically smallest value.
	TieBreakLexical TieBreak = "lexical"
)

// Mode returns the most frequent non-empty string. The second result is
// false when values holds no non-empty entry.
func Mode(values []string, tieBreak TieBreak) (string, bool) {
	counts := make(map[string]int)
	var order []string
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, seen := counts[v]; !seen {
			order = append(order, v)
		}
		counts[v]++
	}
	if len(order) == 0 {
		return "", false
	}

	best := order[0]
	for _, v := range order[1:] {
		switch {
		case counts[v] > counts[best]:
			best = v
		case counts[v] == counts[best] && tieBreak == TieBreakLexical && v < best:
			best = v
		}
	}
	return best, true
}
