// Package stats computes the calibrated intensity measurements for one ROI
// and the log-domain feature vector derived from them.
package stats

import (
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"

	"blobnn/internal/manifest"
	"blobnn/internal/mask"
)

// dilateIterations grows the foreground mask before measurement.
// Thresholding understates the true blob extent, so the sampled region is
// deliberately larger than the raw mask.
const dilateIterations = 2

// Measurements holds the masked intensity readings for one ROI.
// ForegroundMean and ForegroundSize are -1 when no foreground was accepted.
type Measurements struct {
	HasForeground  bool
	ForegroundMean float64
	ForegroundSize int
	BackStrictMean float64
	BackLooseMean  float64
}

// Measure samples the ROI under the three masks. Background means are
// always defined; foreground readings only exist when a component was
// accepted.
func Measure(roi gocv.Mat, m *mask.Result) Measurements {
	meas := Measurements{
		HasForeground:  m.HasForeground,
		ForegroundMean: -1,
		ForegroundSize: -1,
	}

	if m.HasForeground {
		kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(3, 3))
		defer kernel.Close()

		grown := gocv.NewMat()
		defer grown.Close()
		gocv.MorphologyExWithParams(m.Foreground, &grown, gocv.MorphDilate, kernel, dilateIterations, gocv.BorderConstant)

		meas.ForegroundMean = roi.MeanWithMask(grown).Val1
		meas.ForegroundSize = gocv.CountNonZero(grown)
	}

	meas.BackStrictMean = roi.MeanWithMask(m.BackStrict).Val1
	meas.BackLooseMean = roi.MeanWithMask(m.BackLoose).Val1
	return meas
}

// Record is the full per-uid raw ledger row: the manifest fields plus the
// measurements taken this run.
type Record struct {
	manifest.Row
	Measurements
}

// RawLine renders the 13-column raw ledger row, without trailing newline.
func (r Record) RawLine() string {
	return fmt.Sprintf("%d\t%s\t%d\t%s\t%s\t%s\t%s\t%.2f\t%d\t%.2f\t%.2f\t%d\t%d",
		r.UID, r.Filename, r.SampleID, r.SampleName,
		manifest.Mark(r.DetSuccess), manifest.Mark(r.ScaleSuccess), manifest.Mark(r.HasForeground),
		r.ForegroundMean, r.ForegroundSize, r.BackStrictMean, r.BackLooseMean,
		r.ScaleDark, r.ScaleLight)
}

// Features is the log-domain feature vector of one valid record.
type Features struct {
	UID        int
	SampleName string

	LogAbs        float64 // contrast x size
	LogDelta      float64 // calibration span
	LogLight      float64
	LogDark       float64
	LogBackLoose  float64
	LogBackStrict float64
	LogMean       float64
	LogSize       float64
}

// Derive evaluates the validity gate and, when it passes, the eight log
// features. The gate exists to keep every log argument strictly positive
// and the contrast meaningful; a record failing any clause stays in the raw
// ledger but never reaches the stats ledger.
func Derive(r Record) (Features, bool) {
	contrast := r.BackStrictMean - r.ForegroundMean

	valid := r.DetSuccess && r.ScaleSuccess && r.HasForeground &&
		r.ForegroundSize > 0 && r.ForegroundMean > 0 && contrast > 0 &&
		r.ScaleLight > 0 && r.ScaleDark > 0 && r.ScaleLight > r.ScaleDark &&
		r.BackLooseMean > 0 && r.BackStrictMean > 0
	if !valid {
		return Features{}, false
	}

	return Features{
		UID:           r.UID,
		SampleName:    r.SampleName,
		LogAbs:        math.Log(contrast * float64(r.ForegroundSize)),
		LogDelta:      math.Log(float64(r.ScaleLight - r.ScaleDark)),
		LogLight:      math.Log(float64(r.ScaleLight)),
		LogDark:       math.Log(float64(r.ScaleDark)),
		LogBackLoose:  math.Log(r.BackLooseMean),
		LogBackStrict: math.Log(r.BackStrictMean),
		LogMean:       math.Log(r.ForegroundMean),
		LogSize:       math.Log(float64(r.ForegroundSize)),
	}, true
}

// StatLine renders the 12-column stats ledger row for a record and its
// derived features, without trailing newline.
func (r Record) StatLine(f Features) string {
	return fmt.Sprintf("%d\t%s\t%d\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t%.5f\t%s",
		r.UID, r.Filename, r.SampleID,
		f.LogAbs, f.LogDelta, f.LogLight, f.LogDark,
		f.LogBackLoose, f.LogBackStrict, f.LogMean, f.LogSize,
		r.SampleName)
}
