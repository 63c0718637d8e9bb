/**
 * Image collaborators for the sample generator
 *
 * Read, fit-with-pad, and region rectification. All routines produce a
 * height x width NRGBA canvas: Fit letterboxes the whole image onto a
 * fill-colored canvas, Rectify warps a labeled region (a quad via
 * perspective transform, any other polygon via its bounding box) onto
 * the canvas.
 */

package imgtools

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/adverant/nexus/ocr-trainingdata/datasets"
)

// Read loads an image from disk as NRGBA
func Read(path string) (*image.NRGBA, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image %s: %w", path, err)
	}
	return imaging.Clone(img), nil
}

// ReadAndFit loads an image and letterboxes it onto a width x height
// canvas filled with fill.
func ReadAndFit(path string, width, height int, fill color.NRGBA) (*image.NRGBA, error) {
	img, err := Read(path)
	if err != nil {
		return nil, err
	}
	return FitImage(img, width, height, fill), nil
}

// FitImage scales img down (or up) preserving aspect ratio and pastes
// it onto a width x height canvas filled with fill. The image is
// anchored at the top-left; fill shows through the remainder.
func FitImage(img image.Image, width, height int, fill color.NRGBA) *image.NRGBA {
	bounds := img.Bounds()
	scale := math.Min(float64(width)/float64(bounds.Dx()), float64(height)/float64(bounds.Dy()))
	fitW := int(math.Max(1, math.Round(float64(bounds.Dx())*scale)))
	fitH := int(math.Max(1, math.Round(float64(bounds.Dy())*scale)))

	resized := imaging.Resize(img, fitW, fitH, imaging.Lanczos)
	canvas := imaging.New(width, height, fill)
	return imaging.Paste(canvas, resized, image.Pt(0, 0))
}

// RectifyRegion extracts the labeled region from img onto a
// targetWidth x targetHeight canvas. A 4-point region is treated as a
// quad and perspective-warped corner to corner; any other polygon is
// cropped at its axis-aligned bounding box and letterboxed.
//
// Quad corners must be ordered top-left, top-right, bottom-right,
// bottom-left; a different winding warps the region rotated or
// mirrored.
func RectifyRegion(img *image.NRGBA, region []datasets.Point, targetHeight, targetWidth int, fill color.NRGBA) (*image.NRGBA, error) {
	if len(region) < 3 {
		return nil, fmt.Errorf("region needs at least 3 points, got %d", len(region))
	}
	if len(region) == 4 {
		return warpQuad(img, region, targetHeight, targetWidth, fill)
	}

	crop := imaging.Crop(img, boundingRect(region))
	if crop.Bounds().Empty() {
		return nil, fmt.Errorf("region bounding box lies outside the image")
	}
	return FitImage(crop, targetWidth, targetHeight, fill), nil
}

// boundingRect returns the integer axis-aligned bounding box of a polygon
func boundingRect(region []datasets.Point) image.Rectangle {
	minX, minY := region[0].X, region[0].Y
	maxX, maxY := minX, minY
	for _, p := range region[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return image.Rect(int(math.Floor(minX)), int(math.Floor(minY)), int(math.Ceil(maxX)), int(math.Ceil(maxY)))
}

// warpQuad maps the quad's corners onto the target rectangle's corners
// with an inverse perspective transform, sampling source pixels per
// target pixel and filling out-of-bounds samples with fill.
func warpQuad(img *image.NRGBA, quad []datasets.Point, targetHeight, targetWidth int, fill color.NRGBA) (*image.NRGBA, error) {
	dst := []datasets.Point{
		{X: 0, Y: 0},
		{X: float64(targetWidth), Y: 0},
		{X: float64(targetWidth), Y: float64(targetHeight)},
		{X: 0, Y: float64(targetHeight)},
	}
	// Homography from target space back to source space
	h, err := solveHomography(dst, quad)
	if err != nil {
		return nil, err
	}

	out := imaging.New(targetWidth, targetHeight, fill)
	bounds := img.Bounds()
	for y := 0; y < targetHeight; y++ {
		for x := 0; x < targetWidth; x++ {
			sx, sy := applyHomography(h, float64(x)+0.5, float64(y)+0.5)
			ix, iy := int(math.Round(sx-0.5)), int(math.Round(sy-0.5))
			if ix < bounds.Min.X || ix >= bounds.Max.X || iy < bounds.Min.Y || iy >= bounds.Max.Y {
				continue
			}
			out.SetNRGBA(x, y, img.NRGBAAt(ix, iy))
		}
	}
	return out, nil
}

// solveHomography computes the 3x3 projective transform mapping each
// src[i] to dst[i] for four point pairs, as a row-major 9-vector with
// h[8] fixed to 1.
func solveHomography(src, dst []datasets.Point) ([9]float64, error) {
	var h [9]float64
	if len(src) != 4 || len(dst) != 4 {
		return h, fmt.Errorf("homography requires exactly 4 point pairs")
	}

	// Build the standard 8x9 system A*h = b with h8 = 1
	var a [8][8]float64
	var b [8]float64
	for i := 0; i < 4; i++ {
		sx, sy := src[i].X, src[i].Y
		dx, dy := dst[i].X, dst[i].Y
		a[2*i] = [8]float64{sx, sy, 1, 0, 0, 0, -sx * dx, -sy * dx}
		b[2*i] = dx
		a[2*i+1] = [8]float64{0, 0, 0, sx, sy, 1, -sx * dy, -sy * dy}
		b[2*i+1] = dy
	}

	// Gaussian elimination with partial pivoting
	for col := 0; col < 8; col++ {
		pivot := col
		for row := col + 1; row < 8; row++ {
			if math.Abs(a[row][col]) > math.Abs(a[pivot][col]) {
				pivot = row
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return h, fmt.Errorf("degenerate region: points are collinear")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for row := col + 1; row < 8; row++ {
			factor := a[row][col] / a[col][col]
			for k := col; k < 8; k++ {
				a[row][k] -= factor * a[col][k]
			}
			b[row] -= factor * b[col]
		}
	}
	var x [8]float64
	for row := 7; row >= 0; row-- {
		sum := b[row]
		for k := row + 1; k < 8; k++ {
			sum -= a[row][k] * x[k]
		}
		x[row] = sum / a[row][row]
	}

	copy(h[:8], x[:])
	h[8] = 1
	return h, nil
}

// applyHomography maps (x, y) through the row-major 3x3 transform
func applyHomography(h [9]float64, x, y float64) (float64, float64) {
	w := h[6]*x + h[7]*y + h[8]
	if w == 0 {
		return math.Inf(1), math.Inf(1)
	}
	return (h[0]*x + h[1]*y + h[2]) / w, (h[3]*x + h[4]*y + h[5]) / w
}
