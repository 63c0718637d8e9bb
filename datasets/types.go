/**
 * Normalized label schema for OCR recognizer training datasets
 *
 * Every supported dataset, whatever its native label format, is reduced
 * to a flat list of LabelEntry values that the sample generator (and
 * any trainer) can consume without knowing which dataset produced it.
 */

package datasets

import (
	"os"
	"path/filepath"
)

// Point is an (x, y) coordinate in image pixel space
type Point struct {
	X float64
	Y float64
}

// LabelEntry is one normalized training label: an image on disk, an
// optional region delineating the text instance within it, and the
// transcribed text. Region is nil when the source image is already
// cropped to the text instance.
type LabelEntry struct {
	ImagePath string
	Region    []Point
	Text      string
}

// Dataset is an ordered sequence of label entries
type Dataset []LabelEntry

// DefaultCacheDir returns the default cache root, a fixed subdirectory
// of the user's home directory.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ocr-trainingdata"
	}
	return filepath.Join(home, ".ocr-trainingdata")
}
