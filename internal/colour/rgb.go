package colour

import (
	"fmt"
	"image/color"

	"github.com/jmylchreest/colortrack/internal/swatch"
)

// RGB represents a color in RGB format.
type RGB struct {
	R uint8 `json:"r"`
	G uint8 `json:"g"`
	B uint8 `json:"b"`
}

// String returns the RGB color as a string in the format "rgb(r, g, b)".
func (rgb RGB) String() string {
	return fmt.Sprintf("rgb(%d, %d, %d)", rgb.R, rgb.G, rgb.B)
}

// Hex returns the RGB color as an uppercase hex string (e.g., "#1A2B3C").
func (rgb RGB) Hex() string {
	return swatch.Hex(rgb.Packed())
}

// Packed returns the colour as a 24-bit integer.
func (rgb RGB) Packed() uint32 {
	return swatch.Pack(rgb.R, rgb.G, rgb.B)
}

// FromPacked unpacks a 24-bit integer into RGB.
func FromPacked(v uint32) RGB {
	r, g, b := swatch.Components(v)
	return RGB{R: r, G: g, B: b}
}

// ToRGB converts a color.Color to RGB.
func ToRGB(c color.Color) RGB {
	r, g, b, _ := c.RGBA()
	// RGBA returns values in the range [0, 65535], convert to [0, 255]
	return RGB{
		R: uint8(r >> 8),
		G: uint8(g >> 8),
		B: uint8(b >> 8),
	}
}

// RGBToColor converts an RGB value to an opaque color.Color.
func RGBToColor(rgb RGB) color.Color {
	return color.RGBA{R: rgb.R, G: rgb.G, B: rgb.B, A: 255}
}
