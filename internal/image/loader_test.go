package image

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, c color.Color) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	for y := 0; y < 3; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatalf("write png: %v", err)
	}
}

func TestFileLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "red.png")
	writePNG(t, path, color.RGBA{R: 255, A: 255})

	img, err := NewFileLoader().Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 3 {
		t.Errorf("Load() bounds = %v, want 4x3", b)
	}
}

func TestFileLoaderErrors(t *testing.T) {
	dir := t.TempDir()
	garbage := filepath.Join(dir, "garbage.png")
	if err := os.WriteFile(garbage, []byte("not an image"), 0o600); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{name: "empty", path: "", wantErr: "cannot be empty"},
		{name: "missing", path: filepath.Join(dir, "missing.png"), wantErr: "not found"},
		{name: "directory", path: dir, wantErr: "is a directory"},
		{name: "garbage", path: garbage, wantErr: "failed to decode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFileLoader().Load(context.Background(), tt.path)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load(%q) error = %v, want %q", tt.path, err, tt.wantErr)
			}
		})
	}
}

func TestValidateImagePath(t *testing.T) {
	dir := t.TempDir()
	valid := filepath.Join(dir, "ok.png")
	writePNG(t, valid, color.White)
	invalid := filepath.Join(dir, "bad.png")
	if err := os.WriteFile(invalid, []byte("dummy image data"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := ValidateImagePath(valid); err != nil {
		t.Errorf("ValidateImagePath(valid) error: %v", err)
	}
	if err := ValidateImagePath("https://example.com/a.png"); err != nil {
		t.Errorf("ValidateImagePath(url) error: %v", err)
	}
	if err := ValidateImagePath(invalid); err == nil {
		t.Error("ValidateImagePath(invalid) expected error")
	}
	if err := ValidateImagePath(""); err == nil {
		t.Error("ValidateImagePath(empty) expected error")
	}
}

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{path: "a.png", want: true},
		{path: "b.JPG", want: true},
		{path: "c.avif", want: true},
		{path: "d.tiff", want: true},
		{path: "e.txt", want: false},
		{path: "noext", want: false},
	}

	for _, tt := range tests {
		if got := IsImageFile(tt.path); got != tt.want {
			t.Errorf("IsImageFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestScanDirectoryForImages(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "one.png"), color.Black)
	writePNG(t, filepath.Join(dir, "two.png"), color.White)
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.png"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := ScanDirectoryForImages(dir)
	if err != nil {
		t.Fatalf("ScanDirectoryForImages() error: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("ScanDirectoryForImages() = %v, want 2 files", files)
	}

	if _, err := ScanDirectoryForImages(t.TempDir()); err == nil {
		t.Error("expected error for directory without images")
	}
}

func TestSmartLoaderURL(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/image.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	defer server.Close()

	loader := NewSmartLoader()
	got, err := loader.Load(context.Background(), server.URL+"/image.png")
	if err != nil {
		t.Fatalf("Load(url) error: %v", err)
	}
	if got.Bounds().Dx() != 2 {
		t.Errorf("Load(url) width = %d, want 2", got.Bounds().Dx())
	}

	if _, err := loader.Load(context.Background(), server.URL+"/missing.png"); err == nil {
		t.Error("expected error for missing remote image")
	}
}

func TestSmartLoaderURLValidator(t *testing.T) {
	loader := NewSmartLoader().WithURLValidator(func(url string) error {
		if strings.Contains(url, "blocked") {
			return os.ErrPermission
		}
		return nil
	})

	if _, err := loader.Load(context.Background(), "http://blocked.example/a.png"); err != os.ErrPermission {
		t.Errorf("Load() error = %v, want validator error", err)
	}
}
