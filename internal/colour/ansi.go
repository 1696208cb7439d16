package colour

import (
	"fmt"
	"strings"

	"github.com/jmylchreest/colortrack/internal/swatch"
)

// ANSI escape codes for terminal colours.
const (
	ansiReset    = "\033[0m"
	ansiFgPrefix = "\033[38;2;"
	ansiBgPrefix = "\033[48;2;"
	ansiSuffix   = "m"
	defaultWidth = 8
)

// ColourPreview returns an ANSI-coloured preview string for a colour.
// Width specifies how many characters wide the colour block should be.
func ColourPreview(c RGB, width int) string {
	if width <= 0 {
		width = defaultWidth
	}

	bgColour := fmt.Sprintf("%s%d;%d;%d%s", ansiBgPrefix, c.R, c.G, c.B, ansiSuffix)
	return bgColour + strings.Repeat(" ", width) + ansiReset
}

// ColourPreviewWithText returns a colour block with text drawn in fg.
// Text is centred, or truncated when longer than width.
func ColourPreviewWithText(bg, fg RGB, text string, width int) string {
	if width <= 0 {
		width = defaultWidth
	}

	displayText := text
	if len(text) > width {
		displayText = text[:width]
	} else if len(text) < width {
		padding := (width - len(text)) / 2
		displayText = strings.Repeat(" ", padding) + text + strings.Repeat(" ", width-len(text)-padding)
	}

	bgColour := fmt.Sprintf("%s%d;%d;%d%s", ansiBgPrefix, bg.R, bg.G, bg.B, ansiSuffix)
	fgColour := fmt.Sprintf("%s%d;%d;%d%s", ansiFgPrefix, fg.R, fg.G, fg.B, ansiSuffix)

	return bgColour + fgColour + displayText + ansiReset
}

// SwatchPreview renders a swatch block labelled with its share in the
// swatch's own title text colour.
func SwatchPreview(sw swatch.Swatch, width int) string {
	label := fmt.Sprintf("%.1f%%", sw.Percent())
	return ColourPreviewWithText(FromPacked(sw.RGB), FromPacked(sw.TitleTextColor), label, width)
}
