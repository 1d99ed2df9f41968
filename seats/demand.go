package seats

import (
	"fmt"
	"math"
)

// allocateDemand splits total market demand across sellers for one round.
// prices holds each seller's current-round price. The draw sequence is fixed:
// powers are computed first with no randomness, then exactly one noise draw is
// taken per seller in index order. Reorderings break seed compatibility.
//
// Returns the per-seller seats sold and the total demand before per-seller
// rounding.
func allocateDemand(prices []int, c1 float64, stream *Stream) ([]int, float64, error) {
	powers := make([]float64, len(prices))
	for i, price := range prices {
		powers[i] = math.Pow(float64(price), demandExponent)
	}

	noise := make([]float64, len(prices))
	for i := range noise {
		noise[i] = (stream.Float64() - 0.5) * noiseAmplitude / 100.0
	}

	powerSum := 0.0
	for _, p := range powers {
		powerSum += p
	}
	if powerSum == 0 {
		return nil, 0, &ComputationError{
			Op:     "demand allocation",
			Reason: fmt.Sprintf("zero total market power for prices %v", prices),
		}
	}

	totalDemand := baseDemand + math.Pow(powerSum, 1.0/demandExponent)*c1

	sold := make([]int, len(prices))
	for i := range prices {
		share := powers[i] / powerSum
		adjusted := (1 + noise[i]) * share
		sold[i] = int(math.Round(totalDemand * adjusted))
	}
	return sold, totalDemand, nil
}
