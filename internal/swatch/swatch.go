// Package swatch ranks raw colour clusters into display-ready swatches.
package swatch

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// RGBMask keeps the low 24 bits of a packed colour.
const RGBMask = 0xFFFFFF

// Cluster is a group of similar pixels as reported by an extractor.
type Cluster struct {
	RGB            uint32 `json:"rgb"`
	Population     int    `json:"population"`
	TitleTextColor uint32 `json:"titleTextColor"`
	BodyTextColor  uint32 `json:"bodyTextColor"`
}

// Swatch is the normalised form of a cluster.
type Swatch struct {
	RGB            uint32  `json:"rgb"`
	Hex            string  `json:"hex"`
	Population     int     `json:"population"`
	Share          float64 `json:"share"`
	TitleTextColor uint32  `json:"titleTextColor"`
	BodyTextColor  uint32  `json:"bodyTextColor"`
}

// Equal reports whether both swatches carry the same value tuple.
func (s Swatch) Equal(other Swatch) bool {
	return s == other
}

// Percent returns the share as a percentage.
func (s Swatch) Percent() float64 {
	return s.Share * 100
}

// Rank converts clusters into swatches sorted by descending population.
// Clusters with equal population keep their input order. When the total
// population is zero every share is zero.
func Rank(clusters []Cluster) []Swatch {
	var sum int64
	for _, c := range clusters {
		if c.Population > 0 {
			sum += int64(c.Population)
		}
	}
	total := float64(max(sum, 1))

	swatches := make([]Swatch, 0, len(clusters))
	for _, c := range clusters {
		population := max(c.Population, 0)
		swatches = append(swatches, Swatch{
			RGB:            c.RGB,
			Hex:            Hex(c.RGB),
			Population:     population,
			Share:          float64(population) / total,
			TitleTextColor: c.TitleTextColor,
			BodyTextColor:  c.BodyTextColor,
		})
	}

	slices.SortStableFunc(swatches, func(a, b Swatch) int {
		return cmp.Compare(b.Population, a.Population)
	})

	return swatches
}

// Hex formats the low 24 bits of rgb as "#RRGGBB".
func Hex(rgb uint32) string {
	return fmt.Sprintf("#%06X", rgb&RGBMask)
}

// ParseHex parses "#RRGGBB" or "RRGGBB" into a packed 24-bit colour.
func ParseHex(s string) (uint32, error) {
	digits := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(digits) != 6 {
		return 0, fmt.Errorf("invalid hex colour %q: expected 6 digits", s)
	}
	v, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid hex colour %q: %w", s, err)
	}
	return uint32(v) & RGBMask, nil
}

// NormalizeHex returns the canonical "#RRGGBB" spelling of s.
func NormalizeHex(s string) (string, error) {
	rgb, err := ParseHex(s)
	if err != nil {
		return "", err
	}
	return Hex(rgb), nil
}

// Components splits a packed colour into its channels.
func Components(rgb uint32) (r, g, b uint8) {
	return uint8(rgb >> 16), uint8(rgb >> 8), uint8(rgb)
}

// Pack joins three channels into a packed 24-bit colour.
func Pack(r, g, b uint8) uint32 {
	return uint32(r)<<16 | uint32(g)<<8 | uint32(b)
}
