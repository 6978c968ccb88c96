package game

import (
	"math/rand/v2"

	"bingo-room-backend/internal/model"
)

// Remaining returns the numbers in [1, maxNumber] that were not drawn, in
// ascending order.
func Remaining(drawn model.Numbers, maxNumber int) []int {
	seen := make(map[int]struct{}, len(drawn))
	for _, n := range drawn {
		seen[n] = struct{}{}
	}
	remaining := make([]int, 0, maxNumber)
	for n := 1; n <= maxNumber; n++ {
		if _, ok := seen[n]; !ok {
			remaining = append(remaining, n)
		}
	}
	return remaining
}

// Pick selects one undrawn number uniformly at random.
func Pick(drawn model.Numbers, maxNumber int, rng *rand.Rand) (int, error) {
	remaining := Remaining(drawn, maxNumber)
	if len(remaining) == 0 {
		return 0, ErrExhausted
	}
	return remaining[rng.IntN(len(remaining))], nil
}
