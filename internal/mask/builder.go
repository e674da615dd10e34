// Package mask turns a model prediction map into the three measurement
// masks (foreground, loose background, strict background) and a diagnostic
// overlay.
package mask

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"blobnn/pkg/colorutil"
)

// Component records one extracted contour, accepted or not. Kept for
// diagnostics alongside the masks.
type Component struct {
	Area      float64
	Perimeter float64
	Bounds    image.Rectangle
	Accepted  bool
}

// Result holds the masks built for one ROI. All Mats are owned by the
// Result; Close releases them.
type Result struct {
	Foreground gocv.Mat
	BackLoose  gocv.Mat
	BackStrict gocv.Mat
	Overlay    gocv.Mat

	HasForeground bool
	Components    []Component
}

// Close releases every Mat held by the result.
func (r *Result) Close() {
	r.Foreground.Close()
	r.BackLoose.Close()
	r.BackStrict.Close()
	r.Overlay.Close()
}

// Blank returns the degenerate placeholder raster used for rows whose
// upstream detection already failed.
func Blank() gocv.Mat {
	return gocv.Zeros(3, 3, gocv.MatTypeCV8U)
}

// Placeholder returns the degenerate result for a row with no usable ROI:
// minimal blank masks and no foreground.
func Placeholder() *Result {
	return &Result{
		Foreground: Blank(),
		BackLoose:  Blank(),
		BackStrict: Blank(),
		Overlay:    Blank(),
	}
}

// Build constructs the masks and overlay for one ROI from its prediction
// map. roi and pred must be single-channel and the same size.
func Build(roi, pred gocv.Mat, p Params) *Result {
	rows, cols := roi.Rows(), roi.Cols()

	binary := gocv.NewMat()
	defer binary.Close()
	// THRESH_BINARY keeps strictly-greater pixels only.
	gocv.Threshold(pred, &binary, float32(p.Cutoff), 255, gocv.ThresholdBinary)

	hierarchy := gocv.NewMat()
	defer hierarchy.Close()
	contours := gocv.FindContoursWithParams(binary, &hierarchy, gocv.RetrievalTree, gocv.ChainApproxSimple)
	defer contours.Close()

	res := &Result{
		Foreground: gocv.Zeros(rows, cols, gocv.MatTypeCV8U),
		BackLoose:  gocv.Zeros(rows, cols, gocv.MatTypeCV8U),
		BackStrict: gocv.NewMat(),
		Overlay:    gocv.NewMat(),
	}
	gocv.CvtColor(roi, &res.Overlay, gocv.ColorGrayToBGR)

	// The loose background starts as the full ROI inset by the padding
	// margin; accepted foreground regions are carved out of it below.
	inset := image.Rect(p.Padding, p.Padding, cols-p.Padding, rows-p.Padding)
	gocv.Rectangle(&res.BackLoose, inset, colorutil.White, -1)

	for i := 0; i < contours.Size(); i++ {
		cont := contours.At(i)
		comp := Component{
			Area:      gocv.ContourArea(cont),
			Perimeter: gocv.ArcLength(cont, true),
			Bounds:    gocv.BoundingRect(cont),
		}

		if !p.accepts(comp.Area) {
			gocv.DrawContours(&res.Overlay, contours, i, colorutil.Outline, 1)
			res.Components = append(res.Components, comp)
			continue
		}

		comp.Accepted = true
		res.HasForeground = true

		// Every accepted contour joins the union. A model trained on
		// hollow blobs can emit nested inner and outer boundaries for
		// one physical blob, so multiple acceptances are expected.
		gocv.DrawContours(&res.Foreground, contours, i, colorutil.White, -1)
		gocv.DrawContours(&res.Overlay, contours, i, colorutil.Foreground, 2)

		// The model gives no background prediction. Carve out the blob
		// itself plus the band from its right edge to the ROI border: a
		// strip of darker pixels trails each blob on the right and would
		// bias the background means.
		band := image.Rect(comp.Bounds.Max.X, 0, cols, rows)
		gocv.Rectangle(&res.BackLoose, band, colorutil.Black, -1)
		gocv.DrawContours(&res.BackLoose, contours, i, colorutil.Black, -1)

		res.Components = append(res.Components, comp)
	}

	// Strict background: shrink the loose region away from all of its
	// boundaries to avoid partial-volume bias at mask edges.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
	defer kernel.Close()
	gocv.MorphologyExWithParams(res.BackLoose, &res.BackStrict, gocv.MorphErode, kernel, p.Padding, gocv.BorderConstant)

	blendOverlay(res)
	return res
}

// blendOverlay tints the overlay with the three masks: loose background,
// strict background, then foreground, 30% tint over 70% image each.
func blendOverlay(res *Result) {
	rows, cols := res.Overlay.Rows(), res.Overlay.Cols()

	tints := []struct {
		c    color.RGBA
		mask gocv.Mat
	}{
		{colorutil.Loose, res.BackLoose},
		{colorutil.Strict, res.BackStrict},
		{colorutil.Foreground, res.Foreground},
	}

	for _, t := range tints {
		// Solid fills are built directly as Mats, so the RGB palette is
		// swapped into OpenCV's BGR order here.
		scalar := gocv.NewScalar(float64(t.c.B), float64(t.c.G), float64(t.c.R), 0)
		solid := gocv.NewMatWithSizeFromScalar(scalar, rows, cols, gocv.MatTypeCV8UC3)
		masked := gocv.NewMat()
		gocv.BitwiseAndWithMask(solid, solid, &masked, t.mask)
		gocv.AddWeighted(masked, 0.3, res.Overlay, 0.7, 0, &res.Overlay)
		masked.Close()
		solid.Close()
	}
}
