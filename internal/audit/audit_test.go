package audit

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/ironsheep/palmcount/internal/annotate"
	"github.com/ironsheep/palmcount/internal/config"
	"github.com/ironsheep/palmcount/internal/detection"
	"github.com/ironsheep/palmcount/internal/imaging"
	"github.com/ironsheep/palmcount/internal/ocr"
	"github.com/ironsheep/palmcount/internal/store"
)

// fakeRecords serves one recorded run.
type fakeRecords struct {
	dir    string
	counts map[string]int
	err    error
}

func (f *fakeRecords) RunByDir(ctx context.Context, dir string) (*store.Run, error) {
	if f.err != nil {
		return nil, f.err
	}
	if dir != f.dir {
		return nil, store.ErrNotFound
	}
	return &store.Run{ID: 7, Dir: dir}, nil
}

func (f *fakeRecords) ImagesForRun(ctx context.Context, runID int64) ([]store.ImageRecord, error) {
	var out []store.ImageRecord
	for name, n := range f.counts {
		out = append(out, store.ImageRecord{RunID: runID, Filename: name, Count: n})
	}
	return out, nil
}

// widthReader returns a label whose count is keyed by image width.
func widthReader(counts map[int]int) ReadFunc {
	return func(ctx context.Context, img image.Image, rect image.Rectangle, scale float64) (string, error) {
		n, ok := counts[img.Bounds().Dx()]
		if !ok {
			return "", fmt.Errorf("unreadable")
		}
		return fmt.Sprintf("Total Deteksi: %d kelapa sawit", n), nil
	}
}

// writeResults creates runDir/result with one grey image per width.
func writeResults(t *testing.T, widths map[string]int) string {
	t.Helper()
	runDir := filepath.Join(t.TempDir(), "model_1")
	resultDir := filepath.Join(runDir, "result")
	if err := os.MkdirAll(resultDir, 0755); err != nil {
		t.Fatal(err)
	}
	for name, w := range widths {
		img := image.NewNRGBA(image.Rect(0, 0, w, 240))
		for i := range img.Pix {
			img.Pix[i] = 128
		}
		if err := imaging.Save(filepath.Join(resultDir, name), img); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return runDir
}

func TestRun_LabelsOnly(t *testing.T) {
	runDir := writeResults(t, map[string]int{"a.jpg": 300, "b.png": 310})

	report, err := Run(context.Background(), runDir, Options{
		Read: widthReader(map[int]int{300: 4, 310: 0}),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Compared {
		t.Error("no records given, Compared should be false")
	}
	if len(report.Items) != 2 || report.Mismatches != 0 {
		t.Fatalf("got %d items, %d mismatches", len(report.Items), report.Mismatches)
	}
	if report.Items[0].Filename != "a.jpg" || report.Items[0].LabelCount != 4 {
		t.Errorf("first item: got %+v", report.Items[0])
	}
	if report.Items[1].LabelCount != 0 || !report.Items[1].Match {
		t.Errorf("zero label: got %+v", report.Items[1])
	}
}

func TestRun_ComparesRecords(t *testing.T) {
	runDir := writeResults(t, map[string]int{"a.jpg": 300, "b.jpg": 310, "c.jpg": 320})
	records := &fakeRecords{dir: runDir, counts: map[string]int{"a.jpg": 4, "b.jpg": 2}}

	report, err := Run(context.Background(), runDir, Options{
		Records: records,
		Read:    widthReader(map[int]int{300: 4, 310: 5, 320: 1}),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !report.Compared {
		t.Fatal("Compared should be true for a recorded run")
	}

	want := map[string]bool{"a.jpg": true, "b.jpg": false, "c.jpg": false}
	for _, item := range report.Items {
		if item.Match != want[item.Filename] {
			t.Errorf("%s: match %v, want %v", item.Filename, item.Match, want[item.Filename])
		}
	}
	if report.Mismatches != 2 {
		t.Errorf("mismatches: got %d, want 2", report.Mismatches)
	}
	if r := report.Items[0].Recorded; r == nil || *r != 4 {
		t.Errorf("recorded count for a.jpg: got %v", r)
	}
	if report.Items[2].Recorded != nil {
		t.Error("c.jpg was never recorded")
	}
}

func TestRun_UnrecordedRun(t *testing.T) {
	runDir := writeResults(t, map[string]int{"a.jpg": 300})

	report, err := Run(context.Background(), runDir, Options{
		Records: &fakeRecords{dir: "/elsewhere"},
		Read:    widthReader(map[int]int{300: 3}),
	})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Compared || report.Mismatches != 0 {
		t.Errorf("unrecorded run: compared %v, mismatches %d", report.Compared, report.Mismatches)
	}
}

func TestRun_RecordsError(t *testing.T) {
	runDir := writeResults(t, map[string]int{"a.jpg": 300})
	boom := errors.New("database is locked")

	_, err := Run(context.Background(), runDir, Options{
		Records: &fakeRecords{err: boom},
		Read:    widthReader(nil),
	})
	if !errors.Is(err, boom) {
		t.Errorf("got %v, want the records error", err)
	}
}

func TestRun_UnreadableLabel(t *testing.T) {
	runDir := writeResults(t, map[string]int{"a.jpg": 300})

	report, err := Run(context.Background(), runDir, Options{Read: widthReader(nil)})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	item := report.Items[0]
	if item.Err == nil || item.Error == "" || item.Match {
		t.Errorf("unreadable label: got %+v", item)
	}
	if report.Mismatches != 1 {
		t.Errorf("mismatches: got %d, want 1", report.Mismatches)
	}
}

func TestRun_LabelBand(t *testing.T) {
	runDir := writeResults(t, map[string]int{"a.jpg": 300})
	cfg := config.Default()

	var gotRect image.Rectangle
	var gotScale float64
	read := func(ctx context.Context, img image.Image, rect image.Rectangle, scale float64) (string, error) {
		gotRect, gotScale = rect, scale
		return "Total Deteksi: 1", nil
	}

	if _, err := Run(context.Background(), runDir, Options{Config: cfg, Read: read}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if gotRect.Min.X != cfg.Draw.LabelX {
		t.Errorf("band left: got %d, want %d", gotRect.Min.X, cfg.Draw.LabelX)
	}
	if gotRect.Max.Y != cfg.Draw.LabelY+cfg.Draw.LabelPadding {
		t.Errorf("band bottom: got %d, want %d", gotRect.Max.Y, cfg.Draw.LabelY+cfg.Draw.LabelPadding)
	}
	if gotRect.Min.Y >= cfg.Draw.LabelY {
		t.Errorf("band top %d should be above the baseline %d", gotRect.Min.Y, cfg.Draw.LabelY)
	}
	if gotScale != 1 {
		t.Errorf("large labels should not be upscaled, got scale %g", gotScale)
	}
}

func TestRun_SmallLabelUpscaled(t *testing.T) {
	runDir := writeResults(t, map[string]int{"a.jpg": 300})
	cfg := config.Default()
	cfg.Draw.FontScale = 0.5
	cfg.Draw.FontThickness = 1

	var gotScale float64
	read := func(ctx context.Context, img image.Image, rect image.Rectangle, scale float64) (string, error) {
		gotScale = scale
		return "Total Deteksi: 1", nil
	}
	if _, err := Run(context.Background(), runDir, Options{Config: cfg, Read: read}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if gotScale <= 1 {
		t.Errorf("small label scale: got %g, want > 1", gotScale)
	}
}

func TestRun_Errors(t *testing.T) {
	if _, err := Run(context.Background(), filepath.Join(t.TempDir(), "missing"), Options{Read: widthReader(nil)}); err == nil {
		t.Error("missing result folder should fail")
	}

	runDir := writeResults(t, map[string]int{"a.jpg": 300})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Run(ctx, runDir, Options{Read: widthReader(nil)}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled context: got %v", err)
	}

	cfg := config.Default()
	cfg.Draw.TextColor = "green"
	if _, err := Run(context.Background(), runDir, Options{Config: cfg, Read: widthReader(nil)}); err == nil {
		t.Error("invalid text color should fail")
	}
}

func TestRun_Tesseract(t *testing.T) {
	if info := ocr.Info(); !info.Available {
		t.Skipf("Tesseract not available: %s", info.Error)
	}

	cfg := config.Default()
	cfg.Draw.FontScale = 2
	cfg.Draw.FontThickness = 2
	cfg.Draw.LabelY = 80
	cfg.Draw.TextColor = "#ffffff"

	ann, err := annotate.NewAnnotator(cfg.Draw)
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 1400, 220))
	imaging.FillRect(img, image.Pt(0, 0), image.Pt(1399, 219), color.RGBA{128, 128, 128, 255})
	boxes := []detection.Box{
		{X1: 20, Y1: 130, X2: 80, Y2: 200, Score: 0.9},
		{X1: 120, Y1: 130, X2: 180, Y2: 200, Score: 0.8},
		{X1: 220, Y1: 130, X2: 280, Y2: 200, Score: 0.7},
	}
	if _, err := ann.Annotate(img, boxes); err != nil {
		t.Fatal(err)
	}

	runDir := filepath.Join(t.TempDir(), "model_1")
	if err := os.MkdirAll(cfg.Detect.ResultDir(runDir), 0755); err != nil {
		t.Fatal(err)
	}
	if err := imaging.Save(filepath.Join(cfg.Detect.ResultDir(runDir), "a.png"), img); err != nil {
		t.Fatal(err)
	}

	report, err := Run(context.Background(), runDir, Options{Config: cfg})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if item := report.Items[0]; item.Err != nil || item.LabelCount != 3 {
		t.Errorf("read %q as %d (%v), want 3", item.Text, item.LabelCount, item.Err)
	}
}

func TestTesseractReader_OutsideImage(t *testing.T) {
	read := TesseractReader(config.Default().Audit)
	img := image.NewRGBA(image.Rect(0, 0, 50, 50))
	if _, err := read(context.Background(), img, image.Rect(100, 100, 200, 150), 1); err == nil {
		t.Error("reading a band outside the image should fail")
	}
}

func TestTesseractReader_ReadsLabel(t *testing.T) {
	if info := ocr.Info(); !info.Available {
		t.Skipf("Tesseract not available: %s", info.Error)
	}

	cfg := config.Default()
	cfg.Draw.FontScale = 2
	cfg.Draw.FontThickness = 2
	cfg.Draw.LabelY = 80
	cfg.Draw.TextColor = "#ffffff"

	ann, err := annotate.NewAnnotator(cfg.Draw)
	if err != nil {
		t.Fatal(err)
	}
	img := image.NewRGBA(image.Rect(0, 0, 1400, 220))
	imaging.FillRect(img, image.Pt(0, 0), image.Pt(1399, 219), color.RGBA{128, 128, 128, 255})
	boxes := []detection.Box{
		{X1: 20, Y1: 130, X2: 80, Y2: 200, Score: 0.9},
		{X1: 120, Y1: 130, X2: 180, Y2: 200, Score: 0.8},
	}
	if _, err := ann.Annotate(img, boxes); err != nil {
		t.Fatal(err)
	}

	read := TesseractReader(cfg.Audit)
	text, err := read(context.Background(), img, image.Rect(0, 0, 1400, 120), 1)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if n, err := ocr.ParseCount(text); err != nil || n != 2 {
		t.Errorf("read %q as %d (%v), want 2", text, n, err)
	}
}
