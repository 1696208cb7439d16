package colour

import (
	"cmp"
	"fmt"
	"image"
	"slices"

	"github.com/jmylchreest/colortrack/internal/swatch"
)

const (
	defaultQuantizationBits = 5
	defaultAlphaThreshold   = 16
)

// QuantizeExtractor buckets pixels into a reduced colour histogram and
// keeps the most populated buckets.
type QuantizeExtractor struct {
	bits           int
	alphaThreshold uint32
}

// NewQuantizeExtractor creates a QuantizeExtractor using 5 bits per channel.
func NewQuantizeExtractor() *QuantizeExtractor {
	return &QuantizeExtractor{
		bits:           defaultQuantizationBits,
		alphaThreshold: defaultAlphaThreshold,
	}
}

type colourBin struct {
	r, g, b    uint64
	population int
}

// Extract returns the count most populated buckets of img.
// The representative colour of a bucket is the mean of its pixels.
func (e *QuantizeExtractor) Extract(img image.Image, count int) ([]swatch.Cluster, error) {
	if img == nil {
		return nil, fmt.Errorf("image cannot be nil")
	}
	if err := validateCount(count); err != nil {
		return nil, err
	}

	bits := e.bits
	shift := 8 - bits
	bins := make(map[int]*colourBin)
	order := make([]*colourBin, 0)

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			c := img.At(x, y)
			if _, _, _, a := c.RGBA(); a>>8 <= e.alphaThreshold {
				continue
			}
			rgb := ToRGB(c)
			index := int(rgb.R>>shift)<<(bits*2) | int(rgb.G>>shift)<<bits | int(rgb.B>>shift)

			bin, ok := bins[index]
			if !ok {
				bin = &colourBin{}
				bins[index] = bin
				order = append(order, bin)
			}
			bin.r += uint64(rgb.R)
			bin.g += uint64(rgb.G)
			bin.b += uint64(rgb.B)
			bin.population++
		}
	}

	if len(order) == 0 {
		return nil, fmt.Errorf("no pixels found in image")
	}

	slices.SortStableFunc(order, func(a, b *colourBin) int {
		return cmp.Compare(b.population, a.population)
	})
	order = order[:min(count, len(order))]

	clusters := make([]swatch.Cluster, len(order))
	for i, bin := range order {
		n := uint64(bin.population)
		rgb := RGB{
			R: uint8(bin.r / n),
			G: uint8(bin.g / n),
			B: uint8(bin.b / n),
		}
		clusters[i] = newCluster(rgb, bin.population)
	}

	return clusters, nil
}
