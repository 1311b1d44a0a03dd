package store

import (
	"context"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RunSummary holds per-image count statistics for a run.
type RunSummary struct {
	Run    Run     `json:"run"`
	Images int     `json:"images"`
	Total  int     `json:"total"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    int     `json:"min"`
	Max    int     `json:"max"`
}

// Summarize computes count statistics over the images of a run. StdDev is
// the sample standard deviation and is zero for fewer than two images.
func (s *Store) Summarize(ctx context.Context, runID int64) (*RunSummary, error) {
	run, err := s.RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}
	images, err := s.ImagesForRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	sum := &RunSummary{Run: *run, Images: len(images)}
	if len(images) == 0 {
		return sum, nil
	}

	counts := make([]float64, len(images))
	for i, img := range images {
		counts[i] = float64(img.Count)
		sum.Total += img.Count
	}

	mean, std := stat.MeanStdDev(counts, nil)
	sum.Mean = mean
	if len(counts) > 1 {
		sum.StdDev = std
	}
	sum.Min = int(floats.Min(counts))
	sum.Max = int(floats.Max(counts))
	return sum, nil
}
