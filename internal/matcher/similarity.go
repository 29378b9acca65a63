package matcher

// SimilarityScore computes the positional character similarity of two short
// reference strings: the count of positions holding the same character,
// divided by the longer length. Positions beyond the shorter string count as
// mismatches, so the metric is length-sensitive: score("123","1234") is 0.75
// even though one is a prefix of the other.
//
// This is deliberately not an edit distance. References are short digit
// strings keyed by hand; the dominant error is a single mistyped digit, and
// a positional score catches that cheaply and deterministically.
//
// The result is in [0,1]; score(a,a) is 1 for any non-empty a; two empty
// strings score 0.
func SimilarityScore(a, b string) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 0
	}

	shorter := len(a)
	if len(b) < shorter {
		shorter = len(b)
	}

	matches := 0
	for i := 0; i < shorter; i++ {
		if a[i] == b[i] {
			matches++
		}
	}

	return float64(matches) / float64(maxLen)
}
