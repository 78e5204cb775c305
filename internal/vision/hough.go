package vision

import (
	"math"
	"sort"
)

// houghSpace is a dense accumulator over line orientation and signed distance
// from the patch origin. Angles cover [0, pi) in numAngles bins; distances
// cover [-dMax, dMax].
type houghSpace struct {
	numAngles int
	dMax      int
	votes     [][]int // [angle][distance + dMax]
	sin, cos  []float64
}

func newHoughSpace(numAngles, dMax int, sin, cos []float64) *houghSpace {
	votes := make([][]int, numAngles)
	for i := range votes {
		votes[i] = make([]int, 2*dMax+1)
	}
	return &houghSpace{numAngles: numAngles, dMax: dMax, votes: votes, sin: sin, cos: cos}
}

// accumulate votes for every sufficiently strong gradient pixel along its
// angle/distance locus within the restricted sector. The sector runs from
// minIndex to maxIndex and may wrap past the end of the angle axis.
func (h *houghSpace) accumulate(g *GradientImage, minIndex, maxIndex int, threshold float64) {
	for y := 1; y < g.Height-1; y++ {
		for x := 1; x < g.Width-1; x++ {
			if float64(g.MagSq(x, y)) < threshold {
				continue
			}
			for index := minIndex; index != maxIndex; index++ {
				d := int(math.Ceil(float64(x)*h.cos[index] + float64(y)*h.sin[index]))
				h.votes[index][d+h.dMax]++
				if minIndex > maxIndex && index == h.numAngles-1 {
					index = -1
				}
			}
		}
	}
}

// maximum is one local peak of the accumulator.
type maximum struct {
	votes         int
	angleIndex    int
	distanceIndex int
}

// localMaxima returns every cell of the restricted sector that no neighbor in
// its angle±1/distance±1 neighborhood strictly exceeds. The angle axis wraps;
// zero-vote cells are skipped.
func (h *houghSpace) localMaxima(minIndex, maxIndex int) []maximum {
	maxDisIndex := 2*h.dMax + 1
	isMax := func(value, angleIndex, distanceIndex int) bool {
		for i := -1; i <= 1; i++ {
			index := ((angleIndex + i) + h.numAngles) % h.numAngles
			lo := distanceIndex - 1
			if lo < 0 {
				lo = 0
			}
			hi := distanceIndex + 1
			if hi > maxDisIndex-1 {
				hi = maxDisIndex - 1
			}
			for j := lo; j <= hi; j++ {
				if index == angleIndex && j == distanceIndex {
					continue
				}
				if h.votes[index][j] > value {
					return false
				}
			}
		}
		return true
	}

	var maxima []maximum
	for angleIndex := minIndex; angleIndex != maxIndex; angleIndex++ {
		for distanceIndex := 0; distanceIndex < maxDisIndex; distanceIndex++ {
			value := h.votes[angleIndex][distanceIndex]
			if value != 0 && isMax(value, angleIndex, distanceIndex) {
				maxima = append(maxima, maximum{value, angleIndex, distanceIndex})
			}
		}
		if minIndex > maxIndex && angleIndex == h.numAngles-1 {
			angleIndex = -1
		}
	}
	return maxima
}

// sortByVotes orders maxima by vote count, strongest first. The sort is
// stable so equal peaks keep their scan order.
func sortByVotes(maxima []maximum) {
	sort.SliceStable(maxima, func(i, j int) bool {
		return maxima[i].votes > maxima[j].votes
	})
}
