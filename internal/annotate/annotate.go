// Package annotate runs the detection-and-annotate procedure over a folder.
//
// Each invocation claims a fresh run folder <outputRoot>/<prefix>_<N> and
// writes one annotated copy of every input image into its result subfolder.
// The copy starts as the model's own visualization, is reloaded from disk,
// and then gets the counting boxes and a "Total Deteksi" label drawn over it.
package annotate

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/palmcount/internal/config"
	"github.com/ironsheep/palmcount/internal/detection"
	"github.com/ironsheep/palmcount/internal/imaging"
	"github.com/ironsheep/palmcount/internal/logging"
	"github.com/ironsheep/palmcount/internal/runs"
)

// FileError reports which input file made the run fail.
type FileError struct {
	Filename string
	Err      error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// RunInfo describes a run as it starts.
type RunInfo struct {
	Number     int
	Dir        string
	ModelPath  string
	Confidence float64
	StartedAt  time.Time
}

// Recorder persists run history. Implementations must be safe to call from
// the goroutine running the batch.
type Recorder interface {
	BeginRun(ctx context.Context, info RunInfo) (int64, error)
	RecordImage(ctx context.Context, runID int64, img ImageResult, boxes []detection.Box) error
	FinishRun(ctx context.Context, runID int64, res *Result) error
}

// Options tune a single invocation.
type Options struct {
	Logger   logrus.FieldLogger
	Recorder Recorder
}

// ImageResult is the outcome for one input file.
type ImageResult struct {
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Count    int    `json:"count"`
}

// Result summarizes a run.
type Result struct {
	RunDir    string        `json:"run_dir"`
	ResultDir string        `json:"result_dir"`
	Number    int           `json:"number"`
	Images    []ImageResult `json:"images"`
	Total     int           `json:"total"`
	Skipped   []*FileError  `json:"-"`
}

// Run detects, annotates and saves every raster image in cfg.Detect.InputDir.
//
// By default the first file that cannot be decoded, inferred or written
// aborts the run with a *FileError. With cfg.Detect.SkipInvalid the file is
// logged, listed in Result.Skipped and the batch continues. ctx is checked
// between files.
func Run(ctx context.Context, cfg *config.Config, det detection.Detector, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}

	names, err := imaging.ListImages(cfg.Detect.InputDir)
	if err != nil {
		return nil, err
	}

	ann, err := NewAnnotator(cfg.Draw)
	if err != nil {
		return nil, err
	}
	plotColor := imaging.ParseHexColorOr(cfg.Draw.PlotColor, color.RGBA{255, 56, 56, 255})

	runDir, n, err := runs.Create(cfg.Detect.OutputRoot, cfg.Detect.RunPrefix)
	if err != nil {
		return nil, err
	}
	resultDir := cfg.Detect.ResultDir(runDir)
	if err := os.MkdirAll(resultDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create result folder: %w", err)
	}
	log.WithField("run_dir", runDir).Infof("Saving results to %s", resultDir)

	res := &Result{
		RunDir:    runDir,
		ResultDir: resultDir,
		Number:    n,
		Images:    []ImageResult{},
	}

	var runID int64
	if opts.Recorder != nil {
		runID, err = opts.Recorder.BeginRun(ctx, RunInfo{
			Number:     n,
			Dir:        runDir,
			ModelPath:  cfg.Detect.ModelPath,
			Confidence: cfg.Detect.Confidence,
			StartedAt:  time.Now(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to record run: %w", err)
		}
	}

	p := &processor{
		det:       det,
		ann:       ann,
		classes:   cfg.Detect.Classes,
		plotColor: plotColor,
		inputDir:  cfg.Detect.InputDir,
		resultDir: resultDir,
	}

	loopErr := p.processAll(ctx, names, res, cfg.Detect.SkipInvalid, log, opts.Recorder, runID)

	// An aborted run is stamped with the totals it reached.
	if opts.Recorder != nil {
		if err := opts.Recorder.FinishRun(context.WithoutCancel(ctx), runID, res); err != nil {
			if loopErr == nil {
				return res, fmt.Errorf("failed to finish run record: %w", err)
			}
			log.WithError(err).Warn("Failed to finish run record")
		}
	}
	if loopErr != nil {
		return res, loopErr
	}

	log.WithFields(logrus.Fields{
		"images":  len(res.Images),
		"total":   res.Total,
		"skipped": len(res.Skipped),
	}).Info("Run complete")
	return res, nil
}

type processor struct {
	det       detection.Detector
	ann       *Annotator
	classes   []string
	plotColor color.RGBA
	inputDir  string
	resultDir string
}

// processAll runs process over names, accumulating into res. It stops at
// the first cancellation, fatal file error or recording failure.
func (p *processor) processAll(ctx context.Context, names []string, res *Result, skipInvalid bool, log logrus.FieldLogger, rec Recorder, runID int64) error {
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return err
		}
		log.Infof("Processing %s...", name)

		img, boxes, err := p.process(ctx, name)
		if err != nil {
			ferr := &FileError{Filename: name, Err: err}
			if !skipInvalid {
				return ferr
			}
			log.WithError(err).Warnf("Skipping %s", name)
			res.Skipped = append(res.Skipped, ferr)
			continue
		}

		res.Images = append(res.Images, img)
		res.Total += img.Count

		if rec != nil {
			if err := rec.RecordImage(ctx, runID, img, boxes); err != nil {
				return fmt.Errorf("failed to record %s: %w", name, err)
			}
		}
	}
	return nil
}

// process handles one file: detect, persist the model plot, reload it,
// annotate, and overwrite.
func (p *processor) process(ctx context.Context, name string) (ImageResult, []detection.Box, error) {
	src, err := imaging.Open(filepath.Join(p.inputDir, name))
	if err != nil {
		return ImageResult{}, nil, err
	}

	boxes, err := p.det.Detect(ctx, src)
	if err != nil {
		return ImageResult{}, nil, fmt.Errorf("detection failed: %w", err)
	}

	out := filepath.Join(p.resultDir, name)
	plot, err := detection.Plot(src, boxes, p.classes, p.plotColor)
	if err != nil {
		return ImageResult{}, nil, fmt.Errorf("plot failed: %w", err)
	}
	if err := imaging.Save(out, plot); err != nil {
		return ImageResult{}, nil, err
	}

	saved, err := imaging.Open(out)
	if err != nil {
		return ImageResult{}, nil, fmt.Errorf("reload failed: %w", err)
	}
	canvas := imaging.ToRGBA(saved)

	count, err := p.ann.Annotate(canvas, boxes)
	if err != nil {
		return ImageResult{}, nil, err
	}
	if err := imaging.Save(out, canvas); err != nil {
		return ImageResult{}, nil, err
	}

	return ImageResult{Filename: name, Path: out, Count: count}, boxes, nil
}
