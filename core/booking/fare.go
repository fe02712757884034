package booking

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidFareInput is returned when any fare input is negative.
var ErrInvalidFareInput = errors.New("fare inputs must be non-negative")

// Rand is the randomness the estimator draws from. Tests inject a fixed
// source; production wires math/rand seeded in main. Core code never
// touches the global generator.
type Rand interface {
	Float64() float64
}

// Estimator prices a ride. The surge factor is drawn uniformly from
// [surgeMin, surgeMax] on every estimate.
type Estimator struct {
	rnd      Rand
	surgeMin float64
	surgeMax float64
}

func NewEstimator(rnd Rand, surgeMin, surgeMax float64) *Estimator {
	if surgeMin < 1 {
		surgeMin = 1
	}
	if surgeMax < surgeMin {
		surgeMax = surgeMin
	}
	return &Estimator{rnd: rnd, surgeMin: surgeMin, surgeMax: surgeMax}
}

// Estimate computes base + distance*rate*multiplier, inflated by the
// surge factor and rounded to two decimals. Since surge >= 1 the result
// is never below the base fare.
func (e *Estimator) Estimate(baseFare, perKmRate, multiplier, distanceKm float64) (float64, error) {
	if baseFare < 0 || perKmRate < 0 || multiplier < 0 || distanceKm < 0 {
		return 0, fmt.Errorf("base[%v] rate[%v] multiplier[%v] distance[%v]: %w",
			baseFare, perKmRate, multiplier, distanceKm, ErrInvalidFareInput)
	}

	fare := baseFare + distanceKm*perKmRate*multiplier
	surge := e.surgeMin + e.rnd.Float64()*(e.surgeMax-e.surgeMin)

	return math.Round(fare*surge*100) / 100, nil
}

// Distancer resolves the distance between two location texts. The real
// implementation is an external routing service.
type Distancer interface {
	Distance(ctx context.Context, pickup, dropoff string) (float64, error)
}

// MockDistance stands in for a routing service by drawing a distance
// uniformly from [min, max] km.
type MockDistance struct {
	Rnd Rand
	Min float64
	Max float64
}

func (m MockDistance) Distance(ctx context.Context, pickup, dropoff string) (float64, error) {
	d := m.Min + m.Rnd.Float64()*(m.Max-m.Min)
	return math.Round(d*100) / 100, nil
}
