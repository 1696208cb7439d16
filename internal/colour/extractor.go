// Package colour extracts colour clusters from decoded images.
package colour

import (
	"fmt"
	"image"

	"github.com/jmylchreest/colortrack/internal/swatch"
)

// DefaultColorCount is the number of clusters requested per extraction.
const DefaultColorCount = 16

// MaxColorCount is the largest cluster count an extractor accepts.
const MaxColorCount = 256

// Extractor defines the interface for colour extraction algorithms.
type Extractor interface {
	// Extract groups the pixels of img into at most count clusters.
	// The returned clusters are unordered.
	Extract(img image.Image, count int) ([]swatch.Cluster, error)
}

// Algorithm represents the colour extraction algorithm type.
type Algorithm string

const (
	// AlgorithmKMeans uses k-means clustering for colour extraction.
	AlgorithmKMeans Algorithm = "kmeans"

	// AlgorithmQuantize buckets pixels by truncated channel bits.
	AlgorithmQuantize Algorithm = "quantize"
)

// ValidAlgorithms returns a list of valid algorithm names.
func ValidAlgorithms() []Algorithm {
	return []Algorithm{
		AlgorithmKMeans,
		AlgorithmQuantize,
	}
}

// IsValidAlgorithm checks if the given algorithm name is valid.
func IsValidAlgorithm(alg Algorithm) bool {
	for _, valid := range ValidAlgorithms() {
		if alg == valid {
			return true
		}
	}
	return false
}

// NewExtractor creates a new Extractor based on the specified algorithm.
func NewExtractor(alg Algorithm) (Extractor, error) {
	switch alg {
	case AlgorithmKMeans:
		return NewKMeansExtractor(), nil
	case AlgorithmQuantize:
		return NewQuantizeExtractor(), nil
	default:
		return nil, fmt.Errorf("unknown algorithm: %s (valid algorithms: %v)", alg, ValidAlgorithms())
	}
}

// ExtractorConfig holds configuration for colour extraction.
type ExtractorConfig struct {
	Algorithm  Algorithm
	ColorCount int
}

// DefaultExtractorConfig returns the default extractor configuration.
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		Algorithm:  AlgorithmKMeans,
		ColorCount: DefaultColorCount,
	}
}

// Validate validates the extractor configuration.
func (c ExtractorConfig) Validate() error {
	if !IsValidAlgorithm(c.Algorithm) {
		return fmt.Errorf("invalid algorithm: %s", c.Algorithm)
	}
	return validateCount(c.ColorCount)
}

func validateCount(count int) error {
	if count < 1 {
		return fmt.Errorf("color count must be at least 1, got %d", count)
	}
	if count > MaxColorCount {
		return fmt.Errorf("color count too large: %d (maximum: %d)", count, MaxColorCount)
	}
	return nil
}

// newCluster builds a cluster for an opaque colour, deriving its text colours.
func newCluster(rgb RGB, population int) swatch.Cluster {
	title, body := TextColours(rgb)
	return swatch.Cluster{
		RGB:            rgb.Packed(),
		Population:     population,
		TitleTextColor: title.Packed(),
		BodyTextColor:  body.Packed(),
	}
}
