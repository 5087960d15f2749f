package landmarks

import (
	"context"
	"strings"

	"github.com/antzucaro/matchr"
)

// maxSuggestDistance is the largest Levenshtein distance still considered a
// plausible typo of a known sign.
const maxSuggestDistance = 3

// Suggest returns the stored sign key closest to name by Levenshtein
// distance, for "did you mean" hints on unknown-sign lookups. Returns the
// empty string when the store is empty or nothing is within
// maxSuggestDistance.
func Suggest(ctx context.Context, store Store, name string) string {
	signs, err := store.Signs(ctx)
	if err != nil || len(signs) == 0 {
		return ""
	}

	name = strings.ToLower(name)
	best := ""
	bestDist := maxSuggestDistance + 1
	for _, sign := range signs {
		d := matchr.Levenshtein(name, sign)
		if d < bestDist {
			best = sign
			bestDist = d
		}
	}
	return best
}
