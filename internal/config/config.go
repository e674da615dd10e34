// Package config provides run options with environment-backed defaults.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Options holds the run-wide settings for a blobnn invocation. Defaults come
// from the environment (optionally a .env file next to the working
// directory); command-line flags override them.
type Options struct {
	// Source is the blobroi output directory: it contains rois.tsv, the
	// sources/ crops, and receives the ledgers and artifacts.
	Source string

	// ModelPath points at the segmentation model artifact.
	ModelPath string

	// StartID and EndID bound the processed uid range, inclusive.
	StartID int
	EndID   int

	// Cutoff is the grayscale threshold applied to the prediction map.
	Cutoff int

	// Padding is the background inset margin and erosion iteration count.
	Padding int

	// MinArea and MaxArea bound accepted contour areas, exclusive.
	MinArea float64
	MaxArea float64
}

// Load reads defaults from the environment. A missing .env file is not an
// error; explicit environment variables take precedence over it either way.
func Load() Options {
	_ = godotenv.Load()

	return Options{
		ModelPath: getEnv("BLOBNN_MODEL", ""),
		StartID:   getEnvInt("BLOBNN_START", 1),
		EndID:     getEnvInt("BLOBNN_END", maxEndID),
		Cutoff:    getEnvInt("BLOBNN_CUTOFF", 180),
		Padding:   getEnvInt("BLOBNN_PADDING", 5),
		MinArea:   getEnvFloat("BLOBNN_MIN_AREA", 1000),
		MaxArea:   getEnvFloat("BLOBNN_MAX_AREA", 50000),
	}
}

// maxEndID leaves headroom so end+1 arithmetic cannot overflow.
const maxEndID = int(^uint32(0)>>1) - 10

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}
