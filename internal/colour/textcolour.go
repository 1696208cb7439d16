package colour

const (
	// MinTitleContrast is the WCAG ratio required for large title text.
	MinTitleContrast = 3.0

	// MinBodyContrast is the WCAG ratio required for body text.
	MinBodyContrast = 4.5

	alphaSearchIterations = 10
)

var (
	white = RGB{R: 255, G: 255, B: 255}
	black = RGB{}
)

// TextColours returns title and body text colours that stay legible on bg.
// White is preferred; black is used when white cannot reach the contrast.
// Each result is the text colour at its lowest sufficient alpha,
// composited onto bg.
func TextColours(bg RGB) (title, body RGB) {
	lightTitle := minimumAlpha(white, bg, MinTitleContrast)
	lightBody := minimumAlpha(white, bg, MinBodyContrast)
	if lightTitle >= 0 && lightBody >= 0 {
		return composite(white, lightTitle, bg), composite(white, lightBody, bg)
	}

	darkTitle := minimumAlpha(black, bg, MinTitleContrast)
	darkBody := minimumAlpha(black, bg, MinBodyContrast)
	if darkTitle >= 0 && darkBody >= 0 {
		return composite(black, darkTitle, bg), composite(black, darkBody, bg)
	}

	// Mixed: each role takes whichever foreground works for it.
	if lightTitle >= 0 {
		title = composite(white, lightTitle, bg)
	} else {
		title = composite(black, orOpaque(darkTitle), bg)
	}
	if lightBody >= 0 {
		body = composite(white, lightBody, bg)
	} else {
		body = composite(black, orOpaque(darkBody), bg)
	}
	return title, body
}

// minimumAlpha binary-searches the lowest alpha of fg over bg reaching minContrast.
// Returns -1 when even a fully opaque fg is not enough.
func minimumAlpha(fg, bg RGB, minContrast float64) int {
	if contrastRGB(fg, bg) < minContrast {
		return -1
	}

	low, high := 0, 255
	for i := 0; i < alphaSearchIterations && high-low > 1; i++ {
		mid := (low + high) / 2
		if contrastRGB(composite(fg, mid, bg), bg) < minContrast {
			low = mid
		} else {
			high = mid
		}
	}
	return high
}

// composite blends fg at the given alpha (0-255) over an opaque bg.
func composite(fg RGB, alpha int, bg RGB) RGB {
	a := float64(alpha) / 255.0
	blend := func(f, b uint8) uint8 {
		return clampChannel(float64(f)*a + float64(b)*(1-a))
	}
	return RGB{
		R: blend(fg.R, bg.R),
		G: blend(fg.G, bg.G),
		B: blend(fg.B, bg.B),
	}
}

func orOpaque(alpha int) int {
	if alpha < 0 {
		return 255
	}
	return alpha
}
