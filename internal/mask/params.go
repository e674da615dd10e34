package mask

// Params controls mask construction. The defaults were calibrated against a
// fixed imaging resolution and magnification; reprocessing material captured
// under a different setup needs its own calibration, which is why these are
// parameters rather than constants.
type Params struct {
	// Cutoff binarizes the prediction map; pixels strictly greater than
	// Cutoff become foreground candidates.
	Cutoff int

	// Padding is both the inset margin of the loose background rectangle
	// and the erosion iteration count producing the strict background.
	Padding int

	// MinArea and MaxArea bound accepted contour areas, exclusive on both
	// ends. The band rejects noise specks as well as oversized merged
	// regions.
	MinArea float64
	MaxArea float64
}

// DefaultParams returns the calibrated defaults.
func DefaultParams() Params {
	return Params{
		Cutoff:  180,
		Padding: 5,
		MinArea: 1000,
		MaxArea: 50000,
	}
}

// WithCutoff returns a copy of params with a different prediction cutoff.
func (p Params) WithCutoff(cutoff int) Params {
	p.Cutoff = cutoff
	return p
}

// WithAreaBand returns a copy of params with a different accepted area band.
func (p Params) WithAreaBand(minArea, maxArea float64) Params {
	p.MinArea = minArea
	p.MaxArea = maxArea
	return p
}

// accepts reports whether a contour of the given area qualifies as a
// foreground component. Both bounds are exclusive.
func (p Params) accepts(area float64) bool {
	return area > p.MinArea && area < p.MaxArea
}
