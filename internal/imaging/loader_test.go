package imaging

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
)

// writeTestImage writes a solid-color PNG named name inside dir and returns its path.
func writeTestImage(t *testing.T, dir, name string, width, height int, c color.Color) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", name, err)
	}
	defer f.Close()

	if err := png.Encode(f, createInMemoryImage(width, height, c)); err != nil {
		t.Fatalf("failed to encode %s: %v", name, err)
	}
	return path
}

func TestIsRasterImage(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.jpg", true},
		{"a.JPG", true},
		{"a.jpeg", true},
		{"a.Jpeg", true},
		{"a.png", true},
		{"a.PNG", true},
		{"a.gif", false},
		{"a.bmp", false},
		{"a.tiff", false},
		{"jpg", false},
		{"notes.txt", false},
		{"archive.png.zip", false},
	}

	for _, tt := range tests {
		if got := IsRasterImage(tt.name); got != tt.want {
			t.Errorf("IsRasterImage(%q): got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestListImages(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.png", "A.JPG", "b.jpeg", "readme.txt", "d.gif"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested.png"), 0755); err != nil {
		t.Fatal(err)
	}

	got, err := ListImages(dir)
	if err != nil {
		t.Fatalf("ListImages failed: %v", err)
	}
	want := []string{"A.JPG", "b.jpeg", "c.png"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ListImages: got %v, want %v", got, want)
	}
}

func TestListImages_MissingDir(t *testing.T) {
	if _, err := ListImages(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("ListImages should fail for a missing folder")
	}
}

func TestOpenSave_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := createInMemoryImage(40, 30, color.RGBA{0, 0, 255, 255})

	for _, name := range []string{"out.png", "out.jpg"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(path, src); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			img, err := Open(path)
			if err != nil {
				t.Fatalf("Open failed: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 40 || b.Dy() != 30 {
				t.Errorf("dimensions: got %dx%d, want 40x30", b.Dx(), b.Dy())
			}
		})
	}
}

func TestSave_UnsupportedExtension(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "out.xyz"), createInMemoryImage(2, 2, color.White))
	if err == nil {
		t.Error("Save should fail for an unknown extension")
	}
}

func TestOpen_InvalidImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.png")
	if err := os.WriteFile(path, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(path); err == nil {
		t.Error("Open should fail for invalid image data")
	}
}

func TestEncode(t *testing.T) {
	img := createInMemoryImage(10, 10, color.White)

	var buf bytes.Buffer
	if err := Encode(&buf, "x.jpg", img); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := jpeg.Decode(&buf); err != nil {
		t.Errorf("output is not a JPEG: %v", err)
	}

	if err := Encode(&buf, "x.webp", img); err == nil {
		t.Error("Encode should fail for an unsupported extension")
	}
}

func TestToRGBA(t *testing.T) {
	src := image.NewNRGBA(image.Rect(5, 5, 15, 10))
	for i := range src.Pix {
		src.Pix[i] = 0x80
	}

	dst := ToRGBA(src)
	if dst.Bounds() != image.Rect(0, 0, 10, 5) {
		t.Errorf("bounds: got %v, want origin-based 10x5", dst.Bounds())
	}
	if a := dst.RGBAAt(0, 0).A; a != 255 {
		t.Errorf("alpha: got %d, want 255", a)
	}

	// The copy is independent of the source.
	dst.Pix[0] = 1
	if src.Pix[0] != 0x80 {
		t.Error("ToRGBA modified the source image")
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestImage(t, t.TempDir(), "red.png", 100, 100, color.RGBA{255, 0, 0, 255})

	img1, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b := img1.Bounds(); b.Dx() != 100 || b.Dy() != 100 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x100", b.Dx(), b.Dy())
	}

	img2, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
}

func TestImageCache_Load_NonExistent(t *testing.T) {
	cache := NewImageCache()
	if _, err := cache.Load("/nonexistent/path/to/image.png"); err == nil {
		t.Error("Load should fail for non-existent file")
	}
}

func TestImageCache_Evict(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "result")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	a := writeTestImage(t, dir, "a.png", 10, 10, color.White)
	b := writeTestImage(t, sub, "b.png", 10, 10, color.White)
	c := writeTestImage(t, sub, "c.png", 10, 10, color.White)

	cache := NewImageCache()
	for _, p := range []string{a, b, c} {
		if _, err := cache.Load(p); err != nil {
			t.Fatalf("Load failed: %v", err)
		}
	}

	cached := func(path string) bool {
		cache.mu.RLock()
		defer cache.mu.RUnlock()
		_, ok := cache.images[path]
		return ok
	}

	cache.Evict(a)
	if cached(a) {
		t.Error("Evict did not remove image from cache")
	}

	cache.EvictDir(sub)
	if cached(b) || cached(c) {
		t.Error("EvictDir left images from the folder in cache")
	}

	cache.Evict("/nonexistent/path")
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestImage(t, t.TempDir(), "gray.png", 50, 50, color.RGBA{128, 128, 128, 255})

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.Load(imgPath); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestLoadImageInfo(t *testing.T) {
	dir := t.TempDir()
	cache := NewImageCache()

	tests := []struct {
		name   string
		format string
	}{
		{"info.png", "png"},
		{"info.jpg", "jpeg"},
		{"info.jpeg", "jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTestImage(t, dir, tt.name, 200, 150, color.RGBA{255, 128, 64, 255})

			info, err := LoadImageInfo(cache, path)
			if err != nil {
				t.Fatalf("LoadImageInfo failed: %v", err)
			}
			if info.Width != 200 || info.Height != 150 {
				t.Errorf("dimensions: got %dx%d, want 200x150", info.Width, info.Height)
			}
			if info.Format != tt.format {
				t.Errorf("Format: got %s, want %s", info.Format, tt.format)
			}
			if info.FileSizeBytes <= 0 {
				t.Error("FileSizeBytes should be positive")
			}
		})
	}
}

func TestLoadImageInfo_NonExistent(t *testing.T) {
	if _, err := LoadImageInfo(NewImageCache(), "/nonexistent/image.png"); err == nil {
		t.Error("LoadImageInfo should fail for non-existent file")
	}
}

func TestGetDimensions(t *testing.T) {
	cache := NewImageCache()
	imgPath := writeTestImage(t, t.TempDir(), "dims.png", 300, 200, color.RGBA{100, 100, 100, 255})

	dims, err := GetDimensions(cache, imgPath)
	if err != nil {
		t.Fatalf("GetDimensions failed: %v", err)
	}
	if dims.Width != 300 || dims.Height != 200 {
		t.Errorf("dimensions: got %dx%d, want 300x200", dims.Width, dims.Height)
	}

	if _, err := GetDimensions(cache, "/nonexistent/image.png"); err == nil {
		t.Error("GetDimensions should fail for non-existent file")
	}
}
