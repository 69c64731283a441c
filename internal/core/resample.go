package core

import (
	"math"

	"curvegraph/pkg/domain"
)

// Resample maps source onto period slots by nearest-earlier-neighbour
// selection: a fractional cursor advances by len(source)/period per slot and
// each slot takes source[floor(cursor)]. Upsampling repeats samples and
// downsampling skips them; nothing is interpolated.
func Resample(source []float64, period int) ([]float64, error) {
	if period <= 0 {
		return nil, domain.InvalidPeriodError{Period: period}
	}
	if len(source) == 0 {
		return nil, domain.ErrEmptyCurve
	}
	increment := float64(len(source)) / float64(period)
	out := make([]float64, period)
	cursor := 0.0
	for i := range out {
		idx := int(math.Floor(cursor))
		// accumulated rounding must never step past the last sample
		if idx >= len(source) {
			idx = len(source) - 1
		}
		out[i] = source[idx]
		cursor += increment
	}
	return out, nil
}
