package mask

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"blobnn/pkg/colorutil"
)

// syntheticPred builds a blank prediction map with one bright rectangle.
func syntheticPred(rows, cols int, blob image.Rectangle) gocv.Mat {
	pred := gocv.Zeros(rows, cols, gocv.MatTypeCV8U)
	gocv.Rectangle(&pred, blob, colorutil.White, -1)
	return pred
}

func grayROI(rows, cols int) gocv.Mat {
	return gocv.NewMatWithSizeFromScalar(gocv.NewScalar(128, 0, 0, 0), rows, cols, gocv.MatTypeCV8U)
}

func TestAreaBandExclusiveBounds(t *testing.T) {
	p := DefaultParams()
	require.False(t, p.accepts(1000))
	require.False(t, p.accepts(50000))
	require.True(t, p.accepts(1001))
	require.True(t, p.accepts(49999))
}

func TestBuildAcceptsBlobInBand(t *testing.T) {
	roi := grayROI(200, 200)
	defer roi.Close()
	pred := syntheticPred(200, 200, image.Rect(40, 50, 120, 110))
	defer pred.Close()

	res := Build(roi, pred, DefaultParams())
	defer res.Close()

	require.True(t, res.HasForeground)
	require.NotEmpty(t, res.Components)
	require.True(t, res.Components[0].Accepted)
	require.Greater(t, gocv.CountNonZero(res.Foreground), 0)
	require.Greater(t, res.Components[0].Perimeter, 0.0)
}

func TestBuildRejectsSpeck(t *testing.T) {
	roi := grayROI(200, 200)
	defer roi.Close()
	pred := syntheticPred(200, 200, image.Rect(90, 90, 96, 96))
	defer pred.Close()

	res := Build(roi, pred, DefaultParams())
	defer res.Close()

	require.False(t, res.HasForeground)
	require.Equal(t, 0, gocv.CountNonZero(res.Foreground))
	require.Len(t, res.Components, 1)
	require.False(t, res.Components[0].Accepted)
}

func TestForegroundDisjointFromStrictBackground(t *testing.T) {
	roi := grayROI(200, 200)
	defer roi.Close()
	pred := syntheticPred(200, 200, image.Rect(40, 50, 120, 110))
	defer pred.Close()

	res := Build(roi, pred, DefaultParams())
	defer res.Close()

	overlap := gocv.NewMat()
	defer overlap.Close()
	gocv.BitwiseAnd(res.Foreground, res.BackStrict, &overlap)
	require.Equal(t, 0, gocv.CountNonZero(overlap))
}

func TestStrictBackgroundInsideLoose(t *testing.T) {
	roi := grayROI(200, 200)
	defer roi.Close()
	pred := syntheticPred(200, 200, image.Rect(40, 50, 120, 110))
	defer pred.Close()

	res := Build(roi, pred, DefaultParams())
	defer res.Close()

	// Every strict pixel must also be loose: strict AND NOT loose == 0.
	notLoose := gocv.NewMat()
	defer notLoose.Close()
	gocv.BitwiseNot(res.BackLoose, &notLoose)

	outside := gocv.NewMat()
	defer outside.Close()
	gocv.BitwiseAnd(res.BackStrict, notLoose, &outside)
	require.Equal(t, 0, gocv.CountNonZero(outside))

	require.Less(t, gocv.CountNonZero(res.BackStrict), gocv.CountNonZero(res.BackLoose))
}

func TestLooseBackgroundExcludesRightBand(t *testing.T) {
	roi := grayROI(200, 200)
	defer roi.Close()
	pred := syntheticPred(200, 200, image.Rect(40, 50, 120, 110))
	defer pred.Close()

	res := Build(roi, pred, DefaultParams())
	defer res.Close()

	// Everything from the blob's right edge to the ROI border is carved
	// out, full height.
	for _, y := range []int{10, 80, 190} {
		require.Equal(t, uint8(0), res.BackLoose.GetUCharAt(y, 150))
		require.Equal(t, uint8(0), res.BackLoose.GetUCharAt(y, 195))
	}
	// Left of the blob the inset region is still background.
	require.Equal(t, uint8(255), res.BackLoose.GetUCharAt(100, 20))
}

func TestBuildUnionsMultipleAcceptedContours(t *testing.T) {
	roi := grayROI(300, 300)
	defer roi.Close()

	pred := gocv.Zeros(300, 300, gocv.MatTypeCV8U)
	defer pred.Close()
	gocv.Rectangle(&pred, image.Rect(20, 20, 90, 90), colorutil.White, -1)
	gocv.Rectangle(&pred, image.Rect(20, 150, 90, 220), colorutil.White, -1)

	res := Build(roi, pred, DefaultParams())
	defer res.Close()

	require.True(t, res.HasForeground)
	accepted := 0
	for _, c := range res.Components {
		if c.Accepted {
			accepted++
		}
	}
	require.Equal(t, 2, accepted)

	// The union covers both blobs, not just the best one.
	require.NotEqual(t, uint8(0), res.Foreground.GetUCharAt(50, 50))
	require.NotEqual(t, uint8(0), res.Foreground.GetUCharAt(180, 50))
}

func TestPlaceholder(t *testing.T) {
	res := Placeholder()
	defer res.Close()

	require.False(t, res.HasForeground)
	require.Equal(t, 3, res.Foreground.Rows())
	require.Equal(t, 3, res.Foreground.Cols())
	require.Equal(t, 0, gocv.CountNonZero(res.Foreground))
	require.Equal(t, 0, gocv.CountNonZero(res.BackLoose))
	require.Equal(t, 0, gocv.CountNonZero(res.BackStrict))
}
