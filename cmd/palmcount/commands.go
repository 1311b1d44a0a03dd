package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ironsheep/palmcount/internal/annotate"
	"github.com/ironsheep/palmcount/internal/audit"
	"github.com/ironsheep/palmcount/internal/collage"
	"github.com/ironsheep/palmcount/internal/config"
	"github.com/ironsheep/palmcount/internal/detection"
	"github.com/ironsheep/palmcount/internal/runs"
	"github.com/ironsheep/palmcount/internal/server"
	"github.com/ironsheep/palmcount/internal/store"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("palmcount "+name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// openStore opens the history database, or returns nil when path is empty.
func openStore(path string, log logrus.FieldLogger) (*store.Store, error) {
	if path == "" {
		return nil, nil
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}
	log.WithField("db", path).Debug("Run history enabled")
	return st, nil
}

func runDetect(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error {
	d := &cfg.Detect
	fs := newFlagSet("detect")
	fs.StringVar(&d.InputDir, "input", d.InputDir, "folder of input photos")
	fs.StringVar(&d.OutputRoot, "output", d.OutputRoot, "folder receiving numbered run folders")
	fs.StringVar(&d.ModelPath, "model", d.ModelPath, "ONNX detection model")
	fs.StringVar(&d.Backend, "backend", d.Backend, "inference backend: onnx or opencv")
	fs.StringVar(&d.SharedLibraryPath, "ort-lib", d.SharedLibraryPath, "onnxruntime shared library")
	fs.Float64Var(&d.Confidence, "conf", d.Confidence, "minimum detection score")
	fs.Float64Var(&d.IoU, "iou", d.IoU, "non-maximum suppression overlap threshold")
	fs.BoolVar(&d.SkipInvalid, "skip-invalid", d.SkipInvalid, "skip files that fail instead of aborting")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite run history (empty disables)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	st, err := openStore(cfg.DBPath, log)
	if err != nil {
		return err
	}
	opts := annotate.Options{Logger: log}
	if st != nil {
		defer st.Close()
		opts.Recorder = st
	}

	det, err := detection.New(detection.FromConfig(cfg.Detect))
	if err != nil {
		return err
	}
	defer det.Close()

	start := time.Now()
	res, err := annotate.Run(ctx, cfg, det, opts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tCOUNT")
	for _, img := range res.Images {
		fmt.Fprintf(w, "%s\t%d\n", img.Filename, img.Count)
	}
	fmt.Fprintf(w, "TOTAL\t%d\n", res.Total)
	w.Flush()

	for _, ferr := range res.Skipped {
		fmt.Printf("skipped %s\n", ferr)
	}
	fmt.Printf("Results saved to %s (%s)\n", res.ResultDir, time.Since(start).Round(time.Millisecond))
	return nil
}

func runCollage(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error {
	c := &cfg.Collage
	fs := newFlagSet("collage")
	fs.StringVar(&c.ResultsDir, "results", c.ResultsDir, "folder of annotated images (default: newest run)")
	fs.StringVar(&c.OutputDir, "output", c.OutputDir, "folder receiving collage files")
	fs.IntVar(&c.Columns, "columns", c.Columns, "tiles per row")
	fs.IntVar(&c.TileWidth, "tile-width", c.TileWidth, "tile width in pixels")
	fs.IntVar(&c.TileHeight, "tile-height", c.TileHeight, "tile height in pixels")
	fs.BoolVar(&c.SkipInvalid, "skip-invalid", c.SkipInvalid, "skip unreadable images instead of aborting")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	res, err := collage.Build(cfg, collage.Options{Logger: log})
	if err != nil {
		return err
	}
	fmt.Printf("Collage of %d images (%dx%d) saved to %s\n", len(res.Images), res.Width, res.Height, res.Path)
	return nil
}

func runAudit(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error {
	var runDir string
	fs := newFlagSet("audit")
	fs.StringVar(&runDir, "run", "", "run folder to audit (default: newest run)")
	fs.StringVar(&cfg.Audit.Language, "lang", cfg.Audit.Language, "Tesseract language")
	fs.StringVar(&cfg.Audit.TessdataPrefix, "tessdata", cfg.Audit.TessdataPrefix, "Tesseract traineddata folder")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite run history (empty audits labels only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if runDir == "" {
		latest, _, err := runs.Latest(cfg.Detect.OutputRoot, cfg.Detect.RunPrefix)
		if err != nil {
			return err
		}
		runDir = latest
	}

	st, err := openStore(cfg.DBPath, log)
	if err != nil {
		return err
	}
	opts := audit.Options{Config: cfg, Logger: log}
	if st != nil {
		defer st.Close()
		opts.Records = st
	}

	report, err := audit.Run(ctx, runDir, opts)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "IMAGE\tLABEL\tRECORDED\tOK")
	for _, item := range report.Items {
		label, recorded := fmt.Sprint(item.LabelCount), "-"
		if item.Err != nil {
			label = "?"
		}
		if item.Recorded != nil {
			recorded = fmt.Sprint(*item.Recorded)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\n", item.Filename, label, recorded, item.Match)
	}
	w.Flush()

	if report.Mismatches > 0 {
		return fmt.Errorf("%d of %d labels did not check out", report.Mismatches, len(report.Items))
	}
	return nil
}

func runHistory(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error {
	var runID int64
	var limit int
	fs := newFlagSet("history")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite run history")
	fs.Int64Var(&runID, "run-id", 0, "summarize this run")
	fs.IntVar(&limit, "limit", 20, "maximum runs to list")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if cfg.DBPath == "" {
		return errors.New("no history database, set -db or PALMCOUNT_DB_PATH")
	}

	st, err := openStore(cfg.DBPath, log)
	if err != nil {
		return err
	}
	defer st.Close()

	if runID > 0 {
		sum, err := st.Summarize(ctx, runID)
		if err != nil {
			return err
		}
		fmt.Printf("Run %d (%s)\n", sum.Run.Number, sum.Run.Dir)
		fmt.Printf("  images: %d  total: %d\n", sum.Images, sum.Total)
		fmt.Printf("  mean: %.2f  std dev: %.2f  min: %d  max: %d\n", sum.Mean, sum.StdDev, sum.Min, sum.Max)
		return nil
	}

	list, err := st.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tRUN\tSTARTED\tIMAGES\tTOTAL\tFOLDER")
	for _, r := range list {
		fmt.Fprintf(w, "%d\t%d\t%s\t%d\t%d\t%s\n", r.ID, r.Number,
			r.StartedAt.Local().Format(time.DateTime), r.ImageCount, r.TotalCount, r.Dir)
	}
	return w.Flush()
}

func runServe(ctx context.Context, cfg *config.Config, log *logrus.Logger, args []string) error {
	fs := newFlagSet("serve")
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "SQLite run history (empty disables)")
	fs.StringVar(&cfg.Detect.ModelPath, "model", cfg.Detect.ModelPath, "default ONNX detection model")
	if err := fs.Parse(args); err != nil {
		return err
	}

	st, err := openStore(cfg.DBPath, log)
	if err != nil {
		return err
	}
	opts := server.Options{Logger: log}
	if st != nil {
		defer st.Close()
		opts.Store = st
	}

	log.Debugf("palmcount MCP server %s (built %s, commit %s)", Version, BuildTime, GitCommit)
	err = server.New(cfg, opts).Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
