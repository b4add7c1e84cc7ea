package imagegen

import "math"

// ProgressPercent converts a 0..1 progress fraction to a whole percent,
// clamped to 0..100.
func ProgressPercent(progress float64) int {
	if math.IsNaN(progress) {
		return 0
	}
	return int(math.Round(math.Max(0, math.Min(1, progress)) * 100))
}

// Report calls the progress callback, if any.
func (o Options) Report(progress float64, preview string) {
	if o.OnProgress != nil {
		o.OnProgress(ProgressPercent(progress), preview)
	}
}
