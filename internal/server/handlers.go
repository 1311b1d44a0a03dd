package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"

	"github.com/ironsheep/palmcount/internal/annotate"
	"github.com/ironsheep/palmcount/internal/audit"
	"github.com/ironsheep/palmcount/internal/collage"
	"github.com/ironsheep/palmcount/internal/detection"
	"github.com/ironsheep/palmcount/internal/imaging"
	"github.com/ironsheep/palmcount/internal/ocr"
	"github.com/ironsheep/palmcount/internal/runs"
)

// ErrHistoryDisabled is returned by palm_history when no store is configured.
var ErrHistoryDisabled = errors.New("run history is disabled, set PALMCOUNT_DB_PATH")

const defaultHistoryLimit = 20

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "palm_detect", "image_load").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.log.WithError(err).WithField("tool", params.Name).Warn("Tool failed")
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "palm_detect":
		return s.handlePalmDetect(ctx, args)
	case "palm_collage":
		return s.handlePalmCollage(args)
	case "palm_audit":
		return s.handlePalmAudit(ctx, args)
	case "palm_history":
		return s.handlePalmHistory(ctx, args)

	case "image_load":
		return s.handleImageLoad(args)
	case "image_dimensions":
		return s.handleImageDimensions(args)
	case "image_crop":
		return s.handleImageCrop(args)
	case "image_sample_color":
		return s.handleImageSampleColor(args)
	case "image_ocr":
		return s.handleImageOCR(args)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Absent arguments leave v untouched.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		return nil
	}
	return json.Unmarshal(args, v)
}

// === Pipeline Handlers ===

type palmDetectArgs struct {
	InputDir    string   `json:"input_dir"`
	ModelPath   string   `json:"model_path"`
	Confidence  *float64 `json:"confidence"`
	SkipInvalid *bool    `json:"skip_invalid"`
}

type palmDetectResult struct {
	*annotate.Result
	Skipped []string `json:"skipped,omitempty"`
}

func (s *Server) handlePalmDetect(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a palmDetectArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	cfg := *s.cfg
	if a.InputDir != "" {
		cfg.Detect.InputDir = a.InputDir
	}
	if a.ModelPath != "" {
		cfg.Detect.ModelPath = a.ModelPath
	}
	if a.Confidence != nil {
		cfg.Detect.Confidence = *a.Confidence
	}
	if a.SkipInvalid != nil {
		cfg.Detect.SkipInvalid = *a.SkipInvalid
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s.pipeline.Lock()
	defer s.pipeline.Unlock()

	det, err := s.newDetector(detection.FromConfig(cfg.Detect))
	if err != nil {
		return nil, err
	}
	defer det.Close()

	opts := annotate.Options{Logger: s.log}
	if s.store != nil {
		opts.Recorder = s.store
	}
	res, err := annotate.Run(ctx, &cfg, det, opts)
	if err != nil {
		return nil, err
	}

	// Cached reads of the result folder would miss the drawn annotations.
	s.cache.EvictDir(res.ResultDir)

	out := palmDetectResult{Result: res}
	for _, ferr := range res.Skipped {
		out.Skipped = append(out.Skipped, ferr.Error())
	}
	return out, nil
}

type palmCollageArgs struct {
	ResultsDir string `json:"results_dir"`
	OutputDir  string `json:"output_dir"`
	Columns    int    `json:"columns"`
}

func (s *Server) handlePalmCollage(args json.RawMessage) (interface{}, error) {
	var a palmCollageArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	cfg := *s.cfg
	if a.ResultsDir != "" {
		cfg.Collage.ResultsDir = a.ResultsDir
	}
	if a.OutputDir != "" {
		cfg.Collage.OutputDir = a.OutputDir
	}
	if a.Columns != 0 {
		cfg.Collage.Columns = a.Columns
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s.pipeline.Lock()
	defer s.pipeline.Unlock()

	res, err := collage.Build(&cfg, collage.Options{Logger: s.log})
	if err != nil {
		return nil, err
	}
	s.cache.Evict(res.Path)
	return res, nil
}

type palmAuditArgs struct {
	RunDir string `json:"run_dir"`
}

func (s *Server) handlePalmAudit(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a palmAuditArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}

	runDir := a.RunDir
	if runDir == "" {
		latest, _, err := runs.Latest(s.cfg.Detect.OutputRoot, s.cfg.Detect.RunPrefix)
		if err != nil {
			return nil, err
		}
		runDir = latest
	}

	opts := audit.Options{Config: s.cfg, Logger: s.log}
	if s.store != nil {
		opts.Records = s.store
	}
	return audit.Run(ctx, runDir, opts)
}

type palmHistoryArgs struct {
	RunID int64 `json:"run_id"`
	Limit int   `json:"limit"`
}

func (s *Server) handlePalmHistory(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var a palmHistoryArgs
	if err := decodeArgs(args, &a); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, ErrHistoryDisabled
	}

	if a.RunID > 0 {
		return s.store.Summarize(ctx, a.RunID)
	}
	if a.Limit <= 0 {
		a.Limit = defaultHistoryLimit
	}
	list, err := s.store.ListRuns(ctx, a.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"runs": list}, nil
}

// === Basic Image Information Handlers ===

type imageLoadArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleImageLoad(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.LoadImageInfo(s.cache, a.Path)
}

func (s *Server) handleImageDimensions(args json.RawMessage) (interface{}, error) {
	var a imageLoadArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	return imaging.GetDimensions(s.cache, a.Path)
}

// === Region and Color Handlers ===

// CropResult contains the cropped image data
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

type regionArgs struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

func (r regionArgs) rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

type imageCropArgs struct {
	Path string `json:"path"`
	regionArgs
	Scale float64 `json:"scale"`
}

func (s *Server) handleImageCrop(args json.RawMessage) (interface{}, error) {
	var a imageCropArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	cropped, err := imaging.Crop(img, a.rect(), a.Scale)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, "crop.png", cropped); err != nil {
		return nil, err
	}
	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}

type imageSampleColorArgs struct {
	Path string `json:"path"`
	X    int    `json:"x"`
	Y    int    `json:"y"`
}

func (s *Server) handleImageSampleColor(args json.RawMessage) (interface{}, error) {
	var a imageSampleColorArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	return imaging.SampleColor(img, a.X, a.Y)
}

// === OCR Handlers ===

type imageOCRArgs struct {
	Path     string      `json:"path"`
	Language string      `json:"language"`
	Region   *regionArgs `json:"region"`
	Scale    float64     `json:"scale"`
}

func (s *Server) handleImageOCR(args json.RawMessage) (interface{}, error) {
	var a imageOCRArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return nil, err
	}
	opts := ocr.Options{
		Language:       s.cfg.Audit.Language,
		TessdataPrefix: s.cfg.Audit.TessdataPrefix,
	}
	if a.Language != "" {
		opts.Language = a.Language
	}

	if a.Region == nil {
		return ocr.ExtractText(a.Path, opts)
	}

	if a.Scale == 0 {
		a.Scale = 1.0
	}
	img, err := s.cache.Load(a.Path)
	if err != nil {
		return nil, err
	}
	opts.SingleLine = true
	return ocr.ExtractTextFromRegion(img, a.Region.rect(), a.Scale, opts)
}
