// Package colorutil provides the shared overlay palette for the blobnn tool.
package colorutil

import "image/color"

// Overlay colors. gocv drawing primitives take color.RGBA and handle the
// BGR channel order internally, so these are plain RGB values.
var (
	Black = color.RGBA{R: 0, G: 0, B: 0, A: 255}
	White = color.RGBA{R: 255, G: 255, B: 255, A: 255}

	// Foreground blobs are tinted and outlined in red, the strict
	// background in green, the loose background in blue.
	Foreground = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	Strict     = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	Loose      = color.RGBA{R: 0, G: 0, B: 255, A: 255}

	// Rejected contour outlines, kept visible for diagnostics.
	Outline = Black
)
