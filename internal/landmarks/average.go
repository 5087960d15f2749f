package landmarks

import (
	"math"
	"sort"

	"github.com/junghee-19/SignLink/pkg/provider/landmark"
)

// Average computes the per-point mean template over all sampled frames.
// Points are accumulated by landmark ID, so frames may list points in any
// order. Each accumulator is divided by the total frame count, matching the
// extraction pipeline's output exactly: a point missing from some frames is
// pulled toward the origin rather than averaged over its own occurrences.
// Returns nil for empty input.
func Average(frames [][]landmark.Point) []landmark.Point {
	if len(frames) == 0 {
		return nil
	}

	type accum struct{ x, y, z float64 }
	sums := make(map[int]*accum)
	for _, frame := range frames {
		for _, p := range frame {
			a, ok := sums[p.ID]
			if !ok {
				a = &accum{}
				sums[p.ID] = a
			}
			a.x += p.X
			a.y += p.Y
			a.z += p.Z
		}
	}

	ids := make([]int, 0, len(sums))
	for id := range sums {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	n := float64(len(frames))
	out := make([]landmark.Point, 0, len(ids))
	for _, id := range ids {
		a := sums[id]
		out = append(out, landmark.Point{
			ID: id,
			X:  a.x / n,
			Y:  a.y / n,
			Z:  a.z / n,
		})
	}
	return out
}

// meanDistance returns the mean Euclidean distance between two equal-length
// point lists, compared index by index.
func meanDistance(a, b []landmark.Point) float64 {
	total := 0.0
	for i := range a {
		dx := a[i].X - b[i].X
		dy := a[i].Y - b[i].Y
		dz := a[i].Z - b[i].Z
		total += math.Sqrt(dx*dx + dy*dy + dz*dz)
	}
	return total / float64(len(a))
}
