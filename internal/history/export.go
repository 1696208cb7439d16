package history

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/ulikunitz/xz"

	"github.com/jmylchreest/colortrack/internal/security"
	"github.com/jmylchreest/colortrack/internal/store"
)

// Format is an export encoding.
type Format string

const (
	FormatJSON    Format = "json"
	FormatJSONXZ  Format = "json.xz"
	FormatParquet Format = "parquet"
)

// exportVersion is written into every JSON document.
const exportVersion = 1

// maxImportBytes bounds the decompressed size of an import.
const maxImportBytes = 256 << 20

// Formats returns every supported export format.
func Formats() []Format {
	return []Format{FormatJSON, FormatJSONXZ, FormatParquet}
}

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(name)))
	for _, valid := range Formats() {
		if format == valid {
			return format, nil
		}
	}
	return "", fmt.Errorf("unknown export format: %s (valid formats: %v)", name, Formats())
}

// FormatFromPath infers the format from a file name, defaulting to JSON.
func FormatFromPath(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".json.xz"), strings.HasSuffix(lower, ".xz"):
		return FormatJSONXZ
	case strings.HasSuffix(lower, ".parquet"):
		return FormatParquet
	default:
		return FormatJSON
	}
}

// Document is the JSON export layout.
type Document struct {
	Version    int             `json:"version"`
	ExportedAt time.Time       `json:"exportedAt"`
	Sessions   []store.Session `json:"sessions"`
}

// SwatchRow is one swatch of one session in the parquet export.
type SwatchRow struct {
	SessionID      int64   `parquet:"session_id"`
	CreatedAt      string  `parquet:"created_at"`
	ImagePath      string  `parquet:"image_path"`
	Rank           int32   `parquet:"rank"`
	Hex            string  `parquet:"hex"`
	RGB            int64   `parquet:"rgb"`
	Population     int64   `parquet:"population"`
	Share          float64 `parquet:"share"`
	TitleTextColor int64   `parquet:"title_text_color"`
	BodyTextColor  int64   `parquet:"body_text_color"`
}

// Export writes every session to w in the given format.
func (s *Service) Export(ctx context.Context, w io.Writer, format Format) error {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return err
	}

	switch format {
	case FormatJSON:
		return s.writeJSON(w, sessions)
	case FormatJSONXZ:
		xzw, err := xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("failed to create xz writer: %w", err)
		}
		if err := s.writeJSON(xzw, sessions); err != nil {
			xzw.Close()
			return err
		}
		if err := xzw.Close(); err != nil {
			return fmt.Errorf("failed to finish xz stream: %w", err)
		}
		return nil
	case FormatParquet:
		return writeParquet(w, sessions)
	default:
		return fmt.Errorf("unknown export format: %s", format)
	}
}

func (s *Service) writeJSON(w io.Writer, sessions []store.Session) error {
	doc := Document{
		Version:    exportVersion,
		ExportedAt: s.now().UTC(),
		Sessions:   sessions,
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	return nil
}

// Rows flattens sessions into parquet rows, one per swatch.
func Rows(sessions []store.Session) []SwatchRow {
	rows := make([]SwatchRow, 0)
	for _, session := range sessions {
		createdAt := session.CreatedAt.UTC().Format(time.RFC3339Nano)
		for i, sw := range session.Swatches {
			rows = append(rows, SwatchRow{
				SessionID:      session.ID,
				CreatedAt:      createdAt,
				ImagePath:      session.ImagePath,
				Rank:           int32(i + 1),
				Hex:            sw.Hex,
				RGB:            int64(sw.RGB),
				Population:     int64(sw.Population),
				Share:          sw.Share,
				TitleTextColor: int64(sw.TitleTextColor),
				BodyTextColor:  int64(sw.BodyTextColor),
			})
		}
	}
	return rows
}

func writeParquet(w io.Writer, sessions []store.Session) error {
	writer := parquet.NewGenericWriter[SwatchRow](w)

	if rows := Rows(sessions); len(rows) > 0 {
		if _, err := writer.Write(rows); err != nil {
			writer.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("close parquet writer: %w", err)
	}
	return nil
}

// Import reads a JSON or xz-compressed JSON export and inserts its
// sessions as new rows. Image files are referenced, not copied.
func (s *Service) Import(ctx context.Context, r io.Reader, format Format) (int, error) {
	var source io.Reader
	switch format {
	case FormatJSON:
		source = r
	case FormatJSONXZ:
		xzr, err := xz.NewReader(bufio.NewReader(r))
		if err != nil {
			return 0, fmt.Errorf("failed to create xz reader: %w", err)
		}
		source = xzr
	case FormatParquet:
		return 0, errors.New("parquet exports cannot be imported")
	default:
		return 0, fmt.Errorf("unknown import format: %s", format)
	}

	var doc Document
	if err := json.NewDecoder(security.NewLimitedReader(source, maxImportBytes)).Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode export: %w", err)
	}
	if doc.Version != exportVersion {
		return 0, fmt.Errorf("unsupported export version %d", doc.Version)
	}

	imported := 0
	for _, session := range doc.Sessions {
		if _, err := s.sessions.Insert(ctx, session.Swatches, session.ImagePath); err != nil {
			return imported, fmt.Errorf("import session %d: %w", session.ID, err)
		}
		imported++
	}

	s.logger.Debug("imported sessions", "count", imported)
	return imported, nil
}
