// Package audit reads the count label back out of annotated results and
// checks it against what the run recorded.
package audit

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/palmcount/internal/annotate"
	"github.com/ironsheep/palmcount/internal/config"
	"github.com/ironsheep/palmcount/internal/imaging"
	"github.com/ironsheep/palmcount/internal/logging"
	"github.com/ironsheep/palmcount/internal/ocr"
	"github.com/ironsheep/palmcount/internal/store"
)

// minCapHeight is the smallest glyph height handed to the OCR engine. Bands
// rendered smaller are upscaled to reach it.
const minCapHeight = 32

// ReadFunc returns the text found in rect of img after scaling it by scale.
type ReadFunc func(ctx context.Context, img image.Image, rect image.Rectangle, scale float64) (string, error)

// Records looks up what a run stored. *store.Store implements it.
type Records interface {
	RunByDir(ctx context.Context, dir string) (*store.Run, error)
	ImagesForRun(ctx context.Context, runID int64) ([]store.ImageRecord, error)
}

// Options tune a single audit.
type Options struct {
	Config *config.Config
	Logger logrus.FieldLogger

	// Records enables the comparison with recorded counts.
	Records Records

	// Read overrides the Tesseract reader.
	Read ReadFunc
}

// Item is the audit outcome for one result image.
type Item struct {
	Filename   string `json:"filename"`
	LabelCount int    `json:"label_count"`
	Recorded   *int   `json:"recorded,omitempty"`
	Match      bool   `json:"match"`
	Text       string `json:"text"`
	Error      string `json:"error,omitempty"`
	Err        error  `json:"-"`
}

// Report lists the audit items of a run.
type Report struct {
	RunDir     string `json:"run_dir"`
	ResultDir  string `json:"result_dir"`
	Items      []Item `json:"items"`
	Compared   bool   `json:"compared"`
	Mismatches int    `json:"mismatches"`
}

// TesseractReader returns a ReadFunc backed by the ocr package.
func TesseractReader(a config.Audit) ReadFunc {
	opts := ocr.Options{
		Language:       a.Language,
		TessdataPrefix: a.TessdataPrefix,
		SingleLine:     true,
	}
	return func(ctx context.Context, img image.Image, rect image.Rectangle, scale float64) (string, error) {
		res, err := ocr.ExtractTextFromRegion(img, rect, scale, opts)
		if err != nil {
			return "", err
		}
		return res.FullText, nil
	}
}

// Run audits every image in the result folder of runDir.
//
// An item is a mismatch when its label cannot be read, or when Records is set
// and the label disagrees with the recorded count. A run that was never
// recorded is audited without comparison.
func Run(ctx context.Context, runDir string, opts Options) (*Report, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	read := opts.Read
	if read == nil {
		read = TesseractReader(cfg.Audit)
	}

	style, err := annotate.LabelStyle(cfg.Draw)
	if err != nil {
		return nil, err
	}

	resultDir := cfg.Detect.ResultDir(runDir)
	names, err := imaging.ListImages(resultDir)
	if err != nil {
		return nil, err
	}

	recorded, err := loadRecorded(ctx, opts.Records, runDir)
	if err != nil {
		return nil, err
	}
	if opts.Records != nil && recorded == nil {
		log.WithField("run_dir", runDir).Warn("Run not found in history, auditing labels only")
	}

	report := &Report{
		RunDir:    runDir,
		ResultDir: resultDir,
		Items:     []Item{},
		Compared:  recorded != nil,
	}

	anchor := image.Pt(cfg.Draw.LabelX, cfg.Draw.LabelY)
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		item := Item{Filename: name}
		want, known := recorded[name]
		if known {
			item.Recorded = &want
		}

		// The band is measured for the expected label so the crop stops
		// where the background does.
		sample := fmt.Sprintf(cfg.Draw.LabelFormat, 999)
		if known {
			sample = fmt.Sprintf(cfg.Draw.LabelFormat, want)
		}

		item.LabelCount, item.Text, item.Err = readLabel(ctx, read,
			filepath.Join(resultDir, name), sample, anchor, cfg.Draw.LabelPadding, style)

		switch {
		case item.Err != nil:
			item.Error = item.Err.Error()
			log.WithError(item.Err).Warnf("Could not read label of %s", name)
		case known:
			item.Match = item.LabelCount == want
		case recorded == nil:
			item.Match = true
		}
		if !item.Match {
			report.Mismatches++
		}

		log.WithFields(logrus.Fields{
			"label": item.LabelCount,
			"match": item.Match,
		}).Debugf("Audited %s", name)
		report.Items = append(report.Items, item)
	}

	return report, nil
}

func loadRecorded(ctx context.Context, records Records, runDir string) (map[string]int, error) {
	if records == nil {
		return nil, nil
	}
	run, err := records.RunByDir(ctx, runDir)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	images, err := records.ImagesForRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(images))
	for _, img := range images {
		counts[img.Filename] = img.Count
	}
	return counts, nil
}

func readLabel(ctx context.Context, read ReadFunc, path, sample string, anchor image.Point, pad int, style imaging.LabelStyle) (int, string, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return 0, "", err
	}

	w, h, err := imaging.MeasureText(sample, style)
	if err != nil {
		return 0, "", err
	}
	band := imaging.LabelBand(anchor, w, h, pad)

	scale := 1.0
	if h > 0 && h < minCapHeight {
		scale = float64(minCapHeight) / float64(h)
	}

	text, err := read(ctx, img, band, scale)
	if err != nil {
		return 0, "", err
	}
	n, err := ocr.ParseCount(text)
	return n, text, err
}
