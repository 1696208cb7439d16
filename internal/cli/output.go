package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/jmylchreest/colortrack/internal/colour"
	"github.com/jmylchreest/colortrack/internal/swatch"
)

// previewWidth is the width of a swatch preview block.
const previewWidth = 8

// Output formats for swatch lists.
const (
	formatHex   = "hex"
	formatRGB   = "rgb"
	formatJSON  = "json"
	formatTable = "table"
)

var swatchFormats = []string{formatHex, formatRGB, formatJSON, formatTable}

func validateSwatchFormat(format string) error {
	for _, f := range swatchFormats {
		if format == f {
			return nil
		}
	}
	return fmt.Errorf("unsupported format: %s (supported: %s)", format, strings.Join(swatchFormats, ", "))
}

// addFormatFlag registers --format/-f for swatch output.
func addFormatFlag(fs *pflag.FlagSet, target *string, def string) {
	fs.StringVarP(target, "format", "f", def, "output format ("+strings.Join(swatchFormats, ", ")+")")
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// writeSwatches prints swatches in the given format.
func writeSwatches(w io.Writer, swatches []swatch.Swatch, format string, preview bool) error {
	switch format {
	case formatHex:
		for _, sw := range swatches {
			if preview {
				fmt.Fprintf(w, "%s  %s\n", colour.SwatchPreview(sw, previewWidth), sw.Hex)
			} else {
				fmt.Fprintln(w, sw.Hex)
			}
		}
		return nil
	case formatRGB:
		for _, sw := range swatches {
			rgb := colour.FromPacked(sw.RGB).String()
			if preview {
				fmt.Fprintf(w, "%s  %s\n", colour.SwatchPreview(sw, previewWidth), rgb)
			} else {
				fmt.Fprintln(w, rgb)
			}
		}
		return nil
	case formatJSON:
		return writeJSON(w, swatches)
	case formatTable:
		return swatchTable(swatches, preview).Write(w)
	default:
		return validateSwatchFormat(format)
	}
}

func swatchTable(swatches []swatch.Swatch, preview bool) *Table {
	headers := []string{"Rank", "Hex", "Share", "Population", "Title", "Body"}
	if preview {
		headers = append([]string{"Preview"}, headers...)
	}

	table := NewTable(headers)
	for i, sw := range swatches {
		row := []string{
			strconv.Itoa(i + 1),
			sw.Hex,
			fmt.Sprintf("%.1f%%", sw.Percent()),
			strconv.Itoa(sw.Population),
			swatch.Hex(sw.TitleTextColor),
			swatch.Hex(sw.BodyTextColor),
		}
		if preview {
			row = append([]string{colour.SwatchPreview(sw, previewWidth)}, row...)
		}
		table.AddRow(row)
	}
	return table
}

func writeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return fmt.Errorf("failed to convert to JSON: %w", err)
	}
	return nil
}
