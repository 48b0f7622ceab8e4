package utils

import "strings"

// ComputeDistance computes the Levenshtein distance between two strings.
// It is case-insensitive.
func ComputeDistance(s1, s2 string) int {
	s1 = strings.ToLower(s1)
	s2 = strings.ToLower(s2)

	if len(s1) == 0 {
		return len(s2)
	}
	if len(s2) == 0 {
		return len(s1)
	}

	// Two rolling rows are enough; the full matrix is never revisited.
	prev := make([]int, len(s2)+1)
	cur := make([]int, len(s2)+1)
	for j := 0; j <= len(s2); j++ {
		prev[j] = j
	}

	for i := 1; i <= len(s1); i++ {
		cur[0] = i
		for j := 1; j <= len(s2); j++ {
			cost := 1
			if s1[i-1] == s2[j-1] {
				cost = 0
			}
			min := prev[j] + 1 // deletion
			if ins := cur[j-1] + 1; ins < min {
				min = ins // insertion
			}
			if sub := prev[j-1] + cost; sub < min {
				min = sub // substitution
			}
			cur[j] = min
		}
		prev, cur = cur, prev
	}

	return prev[len(s2)]
}

// ClosestMatch finds the candidate with the smallest Levenshtein distance
// to query. Returns the candidate and its distance, or ("", -1) when no
// candidate is within maxDistance. Ties keep the first candidate seen.
func ClosestMatch(query string, candidates []string, maxDistance int) (string, int) {
	if query == "" || len(candidates) == 0 {
		return "", -1
	}

	closest := ""
	minDistance := maxDistance + 1

	for _, candidate := range candidates {
		dist := ComputeDistance(query, candidate)
		if dist < minDistance {
			minDistance = dist
			closest = candidate
		}
	}

	if minDistance <= maxDistance {
		return closest, minDistance
	}
	return "", -1
}
