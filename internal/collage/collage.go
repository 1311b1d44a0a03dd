// Package collage tiles the annotated results of a run into one overview image.
package collage

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/sirupsen/logrus"

	"github.com/ironsheep/palmcount/internal/config"
	"github.com/ironsheep/palmcount/internal/imaging"
	"github.com/ironsheep/palmcount/internal/logging"
	"github.com/ironsheep/palmcount/internal/runs"
)

// ErrNoImages is returned when the results folder holds no usable image.
var ErrNoImages = errors.New("no images found for collage")

// Options tune a single build.
type Options struct {
	Logger logrus.FieldLogger
}

// Result describes the written collage.
type Result struct {
	Path       string   `json:"path"`
	ResultsDir string   `json:"results_dir"`
	Images     []string `json:"images"`
	Skipped    []string `json:"skipped,omitempty"`
	Rows       int      `json:"rows"`
	Columns    int      `json:"columns"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
}

// ResolveResultsDir returns cfg.Collage.ResultsDir, or the result folder of
// the newest run under the detection output root when none is configured.
func ResolveResultsDir(cfg *config.Config) (string, error) {
	if cfg.Collage.ResultsDir != "" {
		return cfg.Collage.ResultsDir, nil
	}
	runDir, _, err := runs.Latest(cfg.Detect.OutputRoot, cfg.Detect.RunPrefix)
	if err != nil {
		return "", fmt.Errorf("no results folder configured: %w", err)
	}
	return cfg.Detect.ResultDir(runDir), nil
}

// Build loads every raster image of the results folder in filename order,
// stretches each to the tile size, lays them out cfg.Collage.Columns per row
// and writes the grid to the first free collage file name in the output
// folder.
func Build(cfg *config.Config, opts Options) (*Result, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	cc := cfg.Collage

	resultsDir, err := ResolveResultsDir(cfg)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cc.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create collage folder: %w", err)
	}

	names, err := imaging.ListImages(resultsDir)
	if err != nil {
		return nil, err
	}

	res := &Result{ResultsDir: resultsDir, Images: []string{}, Columns: cc.Columns}
	tiles := make([]image.Image, 0, len(names))
	for _, name := range names {
		img, err := imaging.Open(filepath.Join(resultsDir, name))
		if err != nil {
			if !cc.SkipInvalid {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			log.WithError(err).Warnf("Skipping %s", name)
			res.Skipped = append(res.Skipped, name)
			continue
		}
		tiles = append(tiles, imaging.ResizeTile(img, cc.TileWidth, cc.TileHeight))
		res.Images = append(res.Images, name)
	}
	if len(tiles) == 0 {
		return nil, fmt.Errorf("%s: %w", resultsDir, ErrNoImages)
	}

	grid, err := imaging.ComposeGrid(tiles, cc.Columns)
	if err != nil {
		return nil, err
	}

	path, err := write(cc, grid)
	if err != nil {
		return nil, err
	}

	b := grid.Bounds()
	res.Path = path
	res.Rows = imaging.GridSize(len(tiles), cc.Columns)
	res.Width, res.Height = b.Dx(), b.Dy()
	log.WithFields(logrus.Fields{
		"images": len(tiles),
		"rows":   res.Rows,
	}).Infof("Collage saved to %s", path)
	return res, nil
}

// write claims the next free file name and encodes img into it. A partially
// written file is removed.
func write(cc config.Collage, img image.Image) (string, error) {
	f, path, err := runs.ClaimFile(cc.OutputDir, cc.FilePattern)
	if err != nil {
		return "", err
	}

	if err := encoderFor(path, cc.JPEGQuality)(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to encode collage: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to write collage: %w", err)
	}
	return path, nil
}

func encoderFor(path string, quality int) imgio.Encoder {
	if strings.EqualFold(filepath.Ext(path), ".png") {
		return imgio.PNGEncoder()
	}
	if quality <= 0 || quality > 100 {
		quality = imaging.DefaultJPEGQuality
	}
	return imgio.JPEGEncoder(quality)
}
