package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveExactMatchWins(t *testing.T) {
	candidates := []string{"beach_cat.jpg", "cat.jpg", "catalog.png"}
	assert.Equal(t, "cat.jpg", Resolve(candidates, "cat.jpg"))
}

func TestResolveSubstringBeatsOverlap(t *testing.T) {
	// "sunset" appears verbatim inside one candidate; another merely
	// shares most of its characters.
	candidates := []string{"stunes.jpg", "beach_sunset_01.jpg"}
	assert.Equal(t, "beach_sunset_01.jpg", Resolve(candidates, "sunset"))
}

func TestResolvePrefixAfterPathNormalization(t *testing.T) {
	candidates := []string{"zzz.jpg", "photos/red_dress.jpg"}
	assert.Equal(t, "photos/red_dress.jpg", Resolve(candidates, "photos\\red_dress"))
}

func TestResolveCharacterOverlap(t *testing.T) {
	// No containment either way, but the candidate holds well over 60%
	// of the query's characters.
	candidates := []string{"qqqq.bin", "red_dress.jpg"}
	assert.Equal(t, "red_dress.jpg", Resolve(candidates, "dressed_r"))
}

func TestResolveTiesBreakInSortedOrder(t *testing.T) {
	// Both contain the query; sorted order decides.
	candidates := []string{"b_cat.jpg", "a_cat.jpg"}
	assert.Equal(t, "a_cat.jpg", Resolve(candidates, "cat"))
}

func TestResolveFallsBackToSomeCandidate(t *testing.T) {
	candidates := []string{"alpha.jpg", "beta.jpg"}
	got := Resolve(candidates, "zzzzzzzz")
	assert.Contains(t, candidates, got)
}

func TestResolveSingleCandidate(t *testing.T) {
	assert.Equal(t, "only.jpg", Resolve([]string{"only.jpg"}, "unrelated-query"))
}

func TestResolveEmptyCandidates(t *testing.T) {
	assert.Equal(t, "", Resolve(nil, "anything"))
}
