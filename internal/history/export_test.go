package history

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/ulikunitz/xz"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "json", want: FormatJSON},
		{input: "JSON.XZ", want: FormatJSONXZ},
		{input: " parquet ", want: FormatParquet},
		{input: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseFormat(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := map[string]Format{
		"history.json":     FormatJSON,
		"history.json.xz":  FormatJSONXZ,
		"backup.XZ":        FormatJSONXZ,
		"swatches.parquet": FormatParquet,
		"history":          FormatJSON,
	}
	for path, want := range tests {
		if got := FormatFromPath(path); got != want {
			t.Errorf("FormatFromPath(%q) = %s, want %s", path, got, want)
		}
	}
}

func TestExportJSON(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, true)
	if _, err := svc.Record(ctx, testImage(), testSwatches()); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.Export(ctx, &buf, FormatJSON); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if doc.Version != 1 || len(doc.Sessions) != 1 {
		t.Fatalf("document = version %d with %d sessions", doc.Version, len(doc.Sessions))
	}
	if doc.Sessions[0].Swatches[0].Share != 0.75 {
		t.Errorf("exported share = %v, want 0.75", doc.Sessions[0].Swatches[0].Share)
	}
}

func TestExportJSONXZ(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, true)
	if _, err := svc.Record(ctx, testImage(), testSwatches()); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.Export(ctx, &buf, FormatJSONXZ); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	xzr, err := xz.NewReader(&buf)
	if err != nil {
		t.Fatalf("xz.NewReader() error: %v", err)
	}
	data, err := io.ReadAll(xzr)
	if err != nil {
		t.Fatalf("decompress export: %v", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	if len(doc.Sessions) != 1 {
		t.Errorf("document has %d sessions, want 1", len(doc.Sessions))
	}
}

func TestExportParquet(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, true)
	session, err := svc.Record(ctx, testImage(), testSwatches())
	if err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	var buf bytes.Buffer
	if err := svc.Export(ctx, &buf, FormatParquet); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	data := buf.Bytes()
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parquet.OpenFile() error: %v", err)
	}
	if pf.NumRows() != 2 {
		t.Fatalf("NumRows() = %d, want 2", pf.NumRows())
	}

	reader := parquet.NewGenericReader[SwatchRow](pf)
	defer reader.Close()

	rows := make([]SwatchRow, 2)
	n, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("Read() error: %v", err)
	}
	if n != 2 {
		t.Fatalf("Read() = %d rows, want 2", n)
	}

	want := []struct {
		rank  int32
		hex   string
		share float64
	}{
		{rank: 1, hex: "#C80A0A", share: 0.75},
		{rank: 2, hex: "#0A0AC8", share: 0.25},
	}
	for i, w := range want {
		row := rows[i]
		if row.SessionID != session.ID || row.Rank != w.rank || row.Hex != w.hex || row.Share != w.share {
			t.Errorf("row %d = %+v", i, row)
		}
		if row.ImagePath != session.ImagePath {
			t.Errorf("row %d ImagePath = %q", i, row.ImagePath)
		}
	}
}

func TestExportParquetEmpty(t *testing.T) {
	svc := newTestService(t, true)

	var buf bytes.Buffer
	if err := svc.Export(context.Background(), &buf, FormatParquet); err != nil {
		t.Fatalf("Export() error: %v", err)
	}

	data := buf.Bytes()
	pf, err := parquet.OpenFile(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parquet.OpenFile() error: %v", err)
	}
	if pf.NumRows() != 0 {
		t.Errorf("NumRows() = %d, want 0", pf.NumRows())
	}
}

func TestExportUnknownFormat(t *testing.T) {
	svc := newTestService(t, true)
	if err := svc.Export(context.Background(), io.Discard, Format("csv")); err == nil {
		t.Error("Export(csv) expected error")
	}
}

func TestImportRoundTrip(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatJSONXZ} {
		t.Run(string(format), func(t *testing.T) {
			ctx := context.Background()
			source := newTestService(t, true)
			if _, err := source.Record(ctx, testImage(), testSwatches()); err != nil {
				t.Fatalf("Record() error: %v", err)
			}

			var buf bytes.Buffer
			if err := source.Export(ctx, &buf, format); err != nil {
				t.Fatalf("Export() error: %v", err)
			}

			target := newTestService(t, true)
			imported, err := target.Import(ctx, &buf, format)
			if err != nil {
				t.Fatalf("Import() error: %v", err)
			}
			if imported != 1 {
				t.Errorf("Import() = %d, want 1", imported)
			}

			sessions, err := target.List(ctx)
			if err != nil {
				t.Fatalf("List() error: %v", err)
			}
			if len(sessions) != 1 || len(sessions[0].Swatches) != 2 {
				t.Fatalf("imported sessions = %+v", sessions)
			}
			if sessions[0].Swatches[1].Share != 0.25 {
				t.Errorf("imported share = %v, want 0.25", sessions[0].Swatches[1].Share)
			}
		})
	}
}

func TestImportRejects(t *testing.T) {
	svc := newTestService(t, true)
	ctx := context.Background()

	if _, err := svc.Import(ctx, bytes.NewReader(nil), FormatParquet); err == nil {
		t.Error("Import(parquet) expected error")
	}
	if _, err := svc.Import(ctx, bytes.NewBufferString(`{"version":9,"sessions":[]}`), FormatJSON); err == nil {
		t.Error("Import() accepted unknown version")
	}
	if _, err := svc.Import(ctx, bytes.NewBufferString(`not json`), FormatJSON); err == nil {
		t.Error("Import() accepted invalid JSON")
	}
}
