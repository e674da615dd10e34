// Package manifest reads the ROI manifest (rois.tsv) and the source crops
// it refers to.
package manifest

import (
	"bufio"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gocv.io/x/gocv"

	_ "golang.org/x/image/tiff"
)

// FileName is the manifest file written by the upstream ROI extraction step.
const FileName = "rois.tsv"

// Row is one manifest record. Boolean flags are serialized as 'x' (true)
// and '.' (false) throughout the TSV files.
type Row struct {
	UID          int
	Filename     string
	SampleID     int
	SampleName   string
	DetSuccess   bool
	ScaleSuccess bool
	ScaleDark    int
	ScaleLight   int
}

// Read loads every row of the manifest in file order. The upstream writer
// emits rows in ascending uid order; Read preserves whatever order it finds.
func Read(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var rows []Row
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")
		if line == "" {
			continue
		}

		row, err := parseRow(line)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", filepath.Base(path), lineNo, err)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return rows, nil
}

// parseRow splits a manifest line into a typed row. Columns:
// uid, filename, sample_id, sample_name, det_success, scale_success,
// scale_dark, scale_light.
func parseRow(line string) (Row, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 8 {
		return Row{}, fmt.Errorf("expected 8 columns, got %d", len(cols))
	}

	uid, err := strconv.Atoi(cols[0])
	if err != nil {
		return Row{}, fmt.Errorf("bad uid %q: %w", cols[0], err)
	}
	if uid <= 0 {
		return Row{}, fmt.Errorf("uid must be positive, got %d", uid)
	}

	sid, err := strconv.Atoi(cols[2])
	if err != nil {
		return Row{}, fmt.Errorf("bad sample id %q: %w", cols[2], err)
	}

	dark, err := strconv.Atoi(cols[6])
	if err != nil {
		return Row{}, fmt.Errorf("bad scale dark %q: %w", cols[6], err)
	}

	light, err := strconv.Atoi(cols[7])
	if err != nil {
		return Row{}, fmt.Errorf("bad scale light %q: %w", cols[7], err)
	}

	return Row{
		UID:          uid,
		Filename:     cols[1],
		SampleID:     sid,
		SampleName:   cols[3],
		DetSuccess:   flag(cols[4]),
		ScaleSuccess: flag(cols[5]),
		ScaleDark:    dark,
		ScaleLight:   light,
	}, nil
}

func flag(col string) bool {
	return strings.HasPrefix(col, "x")
}

// Mark renders a boolean the way the ledgers expect it.
func Mark(b bool) string {
	if b {
		return "x"
	}
	return "."
}

// LoadROI loads the grayscale source crop for a uid. The canonical location
// is <dir>/sources/<uid>.jpg; .png and .tif are accepted as fallbacks for
// sources that were re-exported by hand.
func LoadROI(dir string, uid int) (gocv.Mat, error) {
	base := filepath.Join(dir, "sources", strconv.Itoa(uid))

	mat := gocv.IMRead(base+".jpg", gocv.IMReadGrayScale)
	if !mat.Empty() {
		return mat, nil
	}
	mat.Close()

	for _, ext := range []string{".png", ".tif"} {
		if m, err := decodeGray(base + ext); err == nil {
			return m, nil
		}
	}

	return gocv.NewMat(), fmt.Errorf("no source image for uid %d under %s", uid, filepath.Join(dir, "sources"))
}

// decodeGray decodes an image with the registered stdlib/x-image codecs and
// converts it to a single-channel Mat.
func decodeGray(path string) (gocv.Mat, error) {
	f, err := os.Open(path)
	if err != nil {
		return gocv.NewMat(), err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return gocv.NewMat(), err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	mat := gocv.NewMatWithSize(h, w, gocv.MatTypeCV8U)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			// ITU-R BT.601 luma, 16-bit channels down to 8 bits.
			mat.SetUCharAt(y, x, uint8((19595*r+38470*g+7471*b+1<<15)>>24))
		}
	}
	return mat, nil
}
