package dedupe

// Ratio computes a similarity ratio in [0,1] between two strings as
// 2*M/T, where M is the total length of the longest matching blocks and
// T the combined length. Equivalent strings score 1.0; disjoint ones 0.0.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchTotal(ra, rb)) / float64(total)
}

// matchTotal recursively sums matching block lengths: find the longest
// common contiguous run, then recurse on the pieces before and after it.
func matchTotal(a, b []rune) int {
	i, j, k := longestMatch(a, b)
	if k == 0 {
		return 0
	}
	return k + matchTotal(a[:i], b[:j]) + matchTotal(a[i+k:], b[j+k:])
}

// longestMatch returns the start offsets and length of the longest common
// contiguous run between a and b.
func longestMatch(a, b []rune) (bestI, bestJ, bestK int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0, 0
	}

	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	// j2len[j] = length of the run ending at a[i-1], b[j].
	j2len := make(map[int]int)
	for i, r := range a {
		next := make(map[int]int)
		for _, j := range b2j[r] {
			k := j2len[j-1] + 1
			next[j] = k
			if k > bestK {
				bestI, bestJ, bestK = i-k+1, j-k+1, k
			}
		}
		j2len = next
	}
	return bestI, bestJ, bestK
}
