// Package config holds every tunable of the counting workflow.
//
// Values are resolved in order: built-in defaults, an optional .env file,
// PALMCOUNT_* environment variables, and finally subcommand flags applied by
// the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PALMCOUNT_"

// Config is the complete configuration for all subcommands.
type Config struct {
	Detect  Detect
	Draw    Draw
	Collage Collage
	Audit   Audit

	// DBPath is the SQLite run-history database. Empty disables recording.
	DBPath string

	// LogLevel is a logrus level name ("debug", "info", ...).
	LogLevel string

	// LogFile additionally receives log output when set.
	LogFile string
}

// Detect configures the detection-and-annotate procedure.
type Detect struct {
	InputDir   string
	OutputRoot string
	RunPrefix  string
	ResultName string

	ModelPath         string
	Backend           string
	SharedLibraryPath string
	InputSize         int
	Confidence        float64
	IoU               float64
	Classes           []string

	// SkipInvalid logs and skips files that fail instead of aborting the run.
	SkipInvalid bool
}

// Draw configures the annotation drawn over each result image.
type Draw struct {
	BoxColor     string
	BoxThickness int

	LabelFormat     string
	LabelX          int
	LabelY          int
	LabelPadding    int
	FontScale       float64
	FontThickness   int
	TextColor       string
	BackgroundColor string

	PlotColor string
}

// Collage configures the collage builder.
type Collage struct {
	ResultsDir  string
	OutputDir   string
	FilePattern string
	TileWidth   int
	TileHeight  int
	Columns     int
	JPEGQuality int
	SkipInvalid bool
}

// Audit configures label read-back.
type Audit struct {
	Language       string
	TessdataPrefix string
}

// Default returns the configuration matching the original field scripts.
func Default() *Config {
	return &Config{
		Detect: Detect{
			InputDir:   "test image",
			OutputRoot: "output_image",
			RunPrefix:  "model",
			ResultName: "result",
			ModelPath:  filepath.Join("runs", "count.onnx"),
			Backend:    "onnx",
			InputSize:  640,
			Confidence: 0.4,
			IoU:        0.7,
			Classes:    []string{"kelapa sawit"},
		},
		Draw: Draw{
			BoxColor:        "#0000ff",
			BoxThickness:    5,
			LabelFormat:     "Total Deteksi: %d kelapa sawit",
			LabelX:          10,
			LabelY:          200,
			LabelPadding:    10,
			FontScale:       6.0,
			FontThickness:   10,
			TextColor:       "#00ff00",
			BackgroundColor: "#000000",
			PlotColor:       "#ff3838",
		},
		Collage: Collage{
			OutputDir:   "collage_output",
			FilePattern: "collage_result_%d.jpg",
			TileWidth:   800,
			TileHeight:  600,
			Columns:     5,
			JPEGQuality: 95,
		},
		Audit: Audit{
			Language: "eng",
		},
		LogLevel: "info",
	}
}

// Load builds a Config from defaults, an optional env file and the process
// environment. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	}

	cfg := Default()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	d := &c.Detect
	d.InputDir = getEnv("INPUT_DIR", d.InputDir)
	d.OutputRoot = getEnv("OUTPUT_DIR", d.OutputRoot)
	d.RunPrefix = getEnv("RUN_PREFIX", d.RunPrefix)
	d.ModelPath = getEnv("MODEL_PATH", d.ModelPath)
	d.Backend = getEnv("BACKEND", d.Backend)
	d.SharedLibraryPath = getEnv("ONNXRUNTIME_LIB", d.SharedLibraryPath)
	d.InputSize = getEnvAsInt("INPUT_SIZE", d.InputSize)
	d.Confidence = getEnvAsFloat("CONFIDENCE", d.Confidence)
	d.IoU = getEnvAsFloat("IOU", d.IoU)
	d.Classes = getEnvAsList("CLASSES", d.Classes)
	d.SkipInvalid = getEnvAsBool("SKIP_INVALID", d.SkipInvalid)

	dr := &c.Draw
	dr.BoxColor = getEnv("BOX_COLOR", dr.BoxColor)
	dr.BoxThickness = getEnvAsInt("BOX_THICKNESS", dr.BoxThickness)
	dr.LabelFormat = getEnv("LABEL_FORMAT", dr.LabelFormat)
	dr.LabelX = getEnvAsInt("LABEL_X", dr.LabelX)
	dr.LabelY = getEnvAsInt("LABEL_Y", dr.LabelY)
	dr.FontScale = getEnvAsFloat("FONT_SCALE", dr.FontScale)
	dr.FontThickness = getEnvAsInt("FONT_THICKNESS", dr.FontThickness)
	dr.TextColor = getEnv("TEXT_COLOR", dr.TextColor)
	dr.BackgroundColor = getEnv("BACKGROUND_COLOR", dr.BackgroundColor)

	co := &c.Collage
	co.ResultsDir = getEnv("RESULTS_DIR", co.ResultsDir)
	co.OutputDir = getEnv("COLLAGE_DIR", co.OutputDir)
	co.TileWidth = getEnvAsInt("TILE_WIDTH", co.TileWidth)
	co.TileHeight = getEnvAsInt("TILE_HEIGHT", co.TileHeight)
	co.Columns = getEnvAsInt("COLUMNS", co.Columns)
	co.SkipInvalid = getEnvAsBool("SKIP_INVALID", co.SkipInvalid)

	c.Audit.Language = getEnv("OCR_LANG", c.Audit.Language)
	c.Audit.TessdataPrefix = getEnv("TESSDATA_PREFIX", c.Audit.TessdataPrefix)

	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFile = getEnv("LOG_FILE", c.LogFile)
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch {
	case c.Detect.Confidence < 0 || c.Detect.Confidence > 1:
		return fmt.Errorf("confidence must be within [0,1], got %v", c.Detect.Confidence)
	case c.Detect.IoU <= 0 || c.Detect.IoU > 1:
		return fmt.Errorf("iou must be within (0,1], got %v", c.Detect.IoU)
	case c.Detect.InputSize <= 0 || c.Detect.InputSize%32 != 0:
		return fmt.Errorf("input size must be a positive multiple of 32, got %d", c.Detect.InputSize)
	case len(c.Detect.Classes) == 0:
		return errors.New("at least one class name is required")
	case c.Detect.RunPrefix == "":
		return errors.New("run prefix must not be empty")
	case c.Draw.BoxThickness <= 0:
		return fmt.Errorf("box thickness must be positive, got %d", c.Draw.BoxThickness)
	case c.Draw.FontScale <= 0:
		return fmt.Errorf("font scale must be positive, got %v", c.Draw.FontScale)
	case !strings.Contains(c.Draw.LabelFormat, "%d"):
		return fmt.Errorf("label format %q has no %%d verb", c.Draw.LabelFormat)
	case c.Collage.TileWidth <= 0 || c.Collage.TileHeight <= 0:
		return fmt.Errorf("tile size must be positive, got %dx%d", c.Collage.TileWidth, c.Collage.TileHeight)
	case c.Collage.Columns <= 0:
		return fmt.Errorf("columns must be positive, got %d", c.Collage.Columns)
	case !strings.Contains(c.Collage.FilePattern, "%d"):
		return fmt.Errorf("collage file pattern %q has no %%d verb", c.Collage.FilePattern)
	}
	return nil
}

// ResultDir returns the result subfolder inside a run folder.
func (d Detect) ResultDir(runDir string) string {
	return filepath.Join(runDir, d.ResultName)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(EnvPrefix + key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(EnvPrefix + key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
