package match

// maxCompareLen bounds the edit-distance computation. Inputs longer than
// this are compared by prefix; property values that large are not names.
const maxCompareLen = 256

// SimilarityRatio returns a bounded edit-distance ratio between two strings:
// 1 - distance/max(len). 1.0 means identical, 0.0 means no overlap or an
// empty side. Inputs should already be normalized; the comparison is
// rune-wise and case-sensitive.
func SimilarityRatio(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) > maxCompareLen {
		ra = ra[:maxCompareLen]
	}
	if len(rb) > maxCompareLen {
		rb = rb[:maxCompareLen]
	}
	longest := len(ra)
	if len(rb) > longest {
		longest = len(rb)
	}
	dist := levenshtein(ra, rb)
	return 1 - float64(dist)/float64(longest)
}

// levenshtein computes edit distance with a two-row matrix.
func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := 0; j <= len(b); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost

			min := del
			if ins < min {
				min = ins
			}
			if sub < min {
				min = sub
			}
			curr[j] = min
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}
