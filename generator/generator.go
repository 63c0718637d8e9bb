/**
 * Infinite recognizer sample generator
 *
 * Turns a normalized label list into an unbounded stream of
 * (image, text) training pairs: a private working copy of the labels
 * is walked cyclically and fully reshuffled every time the index wraps
 * to zero (including before the first sample). Each visit paints the
 * region or whole image onto a canvas with a fresh random fill color,
 * filters the text down to the recognizer's alphabet, and skips the
 * entry silently when nothing survives the filter. I/O failures are
 * fatal and propagate to the caller.
 *
 * Not safe for concurrent pulls: the shuffle state and cyclic index
 * are unsynchronized. Wrap with Stream for channel-based consumption.
 */

package generator

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"math/rand"
	"strings"

	"github.com/adverant/nexus/ocr-trainingdata/dataerrors"
	"github.com/adverant/nexus/ocr-trainingdata/datasets"
	"github.com/adverant/nexus/ocr-trainingdata/imgtools"
	"github.com/adverant/nexus/ocr-trainingdata/logging"
)

// Augmenter applies one augmentation to a sample image
type Augmenter interface {
	Augment(img *image.NRGBA) *image.NRGBA
}

// Sample is one emitted (image, text) training pair. Err is set only
// on Stream when the underlying generator failed; the channel closes
// after an errored sample.
type Sample struct {
	Image *image.NRGBA
	Text  string
	Err   error
}

// Config configures a recognizer sample generator
type Config struct {
	// Labels is the normalized dataset to cycle over
	Labels datasets.Dataset

	// Height and Width of every emitted sample image
	Height int
	Width  int

	// Alphabet is the set of characters the recognizer supports;
	// characters outside it are dropped from emitted text
	Alphabet string

	// Augmenter applies an optional augmentation step; may be nil
	Augmenter Augmenter

	// Rand is the RNG driving shuffles and fill colors. Injected
	// explicitly for reproducibility; nil means a time-seeded source.
	Rand *rand.Rand

	// Logger for the advisory out-of-alphabet notice; nil means a
	// package default
	Logger *logging.Logger
}

// RecognizerGenerator produces an infinite stream of training pairs
type RecognizerGenerator struct {
	labels    datasets.Dataset
	height    int
	width     int
	alphabet  map[rune]bool
	augmenter Augmenter
	rng       *rand.Rand
	index     int
}

// New validates the config, reports how many entries contain
// out-of-alphabet characters (advisory, never blocking), and returns a
// generator positioned before its first shuffle.
func New(cfg *Config) (*RecognizerGenerator, error) {
	if cfg == nil {
		return nil, dataerrors.NewInvalidArgumentError("generator config is required")
	}
	if len(cfg.Labels) == 0 {
		return nil, dataerrors.NewInvalidArgumentError("generator requires a non-empty dataset")
	}
	if cfg.Height <= 0 || cfg.Width <= 0 {
		return nil, dataerrors.NewInvalidArgumentError(
			fmt.Sprintf("generator dimensions must be positive, got %dx%d", cfg.Height, cfg.Width))
	}
	if cfg.Alphabet == "" {
		return nil, dataerrors.NewInvalidArgumentError("generator requires a non-empty alphabet")
	}

	alphabet := make(map[rune]bool, len(cfg.Alphabet))
	for _, r := range cfg.Alphabet {
		alphabet[r] = true
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.NewLogger("Generator")
	}
	illegal := 0
	for _, entry := range cfg.Labels {
		for _, r := range entry.Text {
			if !alphabet[r] {
				illegal++
				break
			}
		}
	}
	if illegal > 0 {
		logger.Info("Instances contain out-of-alphabet characters",
			"count", illegal, "total", len(cfg.Labels))
	}

	rng := cfg.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}

	// Private working copy: reshuffles never touch the caller's slice
	labels := make(datasets.Dataset, len(cfg.Labels))
	copy(labels, cfg.Labels)

	return &RecognizerGenerator{
		labels:    labels,
		height:    cfg.Height,
		width:     cfg.Width,
		alphabet:  alphabet,
		augmenter: cfg.Augmenter,
		rng:       rng,
	}, nil
}

// Next returns the next training pair. Entries whose text empties
// after alphabet filtering are skipped without emission; image read
// and rectification failures are returned as errors.
func (g *RecognizerGenerator) Next() (*image.NRGBA, string, error) {
	for {
		if g.index == 0 {
			g.rng.Shuffle(len(g.labels), func(i, j int) {
				g.labels[i], g.labels[j] = g.labels[j], g.labels[i]
			})
		}
		entry := g.labels[g.index]
		g.index = (g.index + 1) % len(g.labels)

		fill := color.NRGBA{
			R: uint8(g.rng.Intn(256)),
			G: uint8(g.rng.Intn(256)),
			B: uint8(g.rng.Intn(256)),
			A: 255,
		}

		var img *image.NRGBA
		var err error
		if entry.Region != nil {
			src, readErr := imgtools.Read(entry.ImagePath)
			if readErr != nil {
				return nil, "", readErr
			}
			img, err = imgtools.RectifyRegion(src, entry.Region, g.height, g.width, fill)
		} else {
			img, err = imgtools.ReadAndFit(entry.ImagePath, g.width, g.height, fill)
		}
		if err != nil {
			return nil, "", err
		}

		text := g.filterText(entry.Text)
		if text == "" {
			continue
		}

		if g.augmenter != nil {
			img = g.augmenter.Augment(img)
		}
		return img, text, nil
	}
}

// Stream adapts the generator to channel consumption: a goroutine
// pulls samples until ctx is cancelled or the generator fails, in
// which case a final sample carrying the error is sent and the
// channel closes.
func (g *RecognizerGenerator) Stream(ctx context.Context, buffer int) <-chan Sample {
	out := make(chan Sample, buffer)
	go func() {
		defer close(out)
		for {
			img, text, err := g.Next()
			sample := Sample{Image: img, Text: text, Err: err}
			select {
			case <-ctx.Done():
				return
			case out <- sample:
			}
			if err != nil {
				return
			}
		}
	}()
	return out
}

// filterText keeps only alphabet characters, preserving relative order
func (g *RecognizerGenerator) filterText(text string) string {
	var sb strings.Builder
	for _, r := range text {
		if g.alphabet[r] {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
