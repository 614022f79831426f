// Package progress maps nested stage fractions onto the overall 0..1 bar.
package progress

// Range is a closed sub-interval of the progress bar.
type Range struct {
	From float64
	To   float64
}

// Fixed allocation of a single-file import.
var (
	Extract    = Range{From: 0, To: 0.05}
	Transcribe = Range{From: 0.05, To: 0.50}
	Translate  = Range{From: 0.50, To: 0.80}
	Export     = Range{From: 0.80, To: 1.0}
	Unit       = Range{From: 0, To: 1}
)

// Map linearly interpolates value from one range into another. The result is
// clamped to the destination range.
func Map(value float64, from, to Range) float64 {
	span := from.To - from.From
	if span == 0 {
		return to.From
	}
	t := (value - from.From) / span
	if t < 0 {
		t = 0
	}
	if t > 1 {
		t = 1
	}
	return to.From + t*(to.To-to.From)
}

// Stage maps a 0..1 fraction of one stage into the overall bar.
func Stage(fraction float64, stage Range) float64 {
	return Map(fraction, Unit, stage)
}

// Ratio returns done/total as a 0..1 fraction, treating unknown totals as 0.
func Ratio(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	if done >= total {
		return 1
	}
	if done <= 0 {
		return 0
	}
	return float64(done) / float64(total)
}
