package service

import (
	"math/rand"
	"sort"
	"strings"
)

// Resolve reconciles a free-text asset name (typically produced by the
// completion backend) against the actual catalog. Matching rules are
// tried in strict precedence; the first rule with at least one hit wins,
// and ties within a rule go to the first candidate in sorted order:
//
//  1. exact equality
//  2. query contained in a candidate
//  3. prefix or suffix containment, path-separator normalized
//  4. character overlap covering at least 60% of the query
//  5. a uniformly random candidate
//
// The random fallback guarantees callers always get something to show
// the user instead of an error.
func Resolve(candidates []string, query string) string {
	if len(candidates) == 0 {
		return ""
	}

	sorted := make([]string, len(candidates))
	copy(sorted, candidates)
	sort.Strings(sorted)

	query = strings.TrimSpace(query)

	for _, name := range sorted {
		if name == query {
			return name
		}
	}

	if query != "" {
		for _, name := range sorted {
			if strings.Contains(name, query) {
				return name
			}
		}

		normalized := normalizePath(query)
		for _, name := range sorted {
			base := normalizePath(name)
			if strings.HasPrefix(base, normalized) || strings.HasSuffix(base, normalized) {
				return name
			}
		}

		threshold := (6*len(query) + 9) / 10
		for _, name := range sorted {
			if overlapCount(name, query) >= threshold {
				return name
			}
		}
	}

	return sorted[rand.Intn(len(sorted))]
}

func normalizePath(s string) string {
	s = strings.ReplaceAll(s, "\\", "/")
	return strings.Trim(s, "/")
}

// overlapCount counts how many of query's characters appear in the
// candidate, consuming each candidate character at most once.
func overlapCount(candidate, query string) int {
	pool := make(map[rune]int)
	for _, r := range candidate {
		pool[r]++
	}

	count := 0
	for _, r := range query {
		if pool[r] > 0 {
			pool[r]--
			count++
		}
	}
	return count
}
