package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	"github.com/ironsheep/palmcount/internal/imaging"
)

// Bounds represents a rectangular bounding box in pixel coordinates.
type Bounds struct {
	X1 int `json:"x1"` // Left edge
	Y1 int `json:"y1"` // Top edge
	X2 int `json:"x2"` // Right edge
	Y2 int `json:"y2"` // Bottom edge
}

// TextRegion represents a word with its location and OCR confidence.
type TextRegion struct {
	Text string `json:"text"`

	// Confidence is the OCR confidence score (0.0 to 1.0).
	Confidence float64 `json:"confidence"`

	Bounds Bounds `json:"bounds"`
}

// OCRResult contains the complete results of text extraction from an image.
type OCRResult struct {
	// FullText is all recognized text with original spacing and newlines.
	FullText string `json:"full_text"`

	// Regions holds individual words. It may be empty when word boxes are
	// unavailable; FullText is still filled in that case.
	Regions []TextRegion `json:"regions"`
}

// Options selects the Tesseract model and page layout.
type Options struct {
	// Language is a Tesseract language code such as "eng".
	Language string

	// TessdataPrefix points at the traineddata folder. Empty uses the
	// TESSDATA_PREFIX environment variable or the library default.
	TessdataPrefix string

	// SingleLine treats the image as one line of text, which suits the
	// count label band.
	SingleLine bool
}

func newClient(opts Options) (*gosseract.Client, error) {
	client := gosseract.NewClient()

	if opts.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(opts.TessdataPrefix); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set tessdata path: %w", err)
		}
	}

	lang := opts.Language
	if lang == "" {
		lang = "eng"
	}
	if err := client.SetLanguage(lang); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to set language: %w", err)
	}

	if opts.SingleLine {
		if err := client.SetPageSegMode(gosseract.PSM_SINGLE_LINE); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to set page segmentation: %w", err)
		}
	}
	return client, nil
}

// ExtractText performs OCR on an image file.
func ExtractText(imagePath string, opts Options) (*OCRResult, error) {
	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImage(imagePath); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return recognize(client)
}

// ExtractTextFromImage performs OCR on an in-memory image. The image is
// handed to Tesseract as PNG bytes, so no temporary file is involved.
func ExtractTextFromImage(img image.Image, opts Options) (*OCRResult, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	client, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}
	return recognize(client)
}

// ExtractTextFromRegion performs OCR on rect of img, upscaled by scale.
// Word bounds in the result are mapped back to img coordinates.
func ExtractTextFromRegion(img image.Image, rect image.Rectangle, scale float64, opts Options) (*OCRResult, error) {
	cropped, err := imaging.Crop(img, rect, scale)
	if err != nil {
		return nil, err
	}

	result, err := ExtractTextFromImage(cropped, opts)
	if err != nil {
		return nil, err
	}

	origin := rect.Canon().Intersect(img.Bounds()).Min
	for i := range result.Regions {
		b := &result.Regions[i].Bounds
		b.X1 = origin.X + int(float64(b.X1)/scale)
		b.Y1 = origin.Y + int(float64(b.Y1)/scale)
		b.X2 = origin.X + int(float64(b.X2)/scale)
		b.Y2 = origin.Y + int(float64(b.Y2)/scale)
	}
	return result, nil
}

func recognize(client *gosseract.Client) (*OCRResult, error) {
	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return &OCRResult{FullText: text, Regions: []TextRegion{}}, nil
	}

	regions := make([]TextRegion, 0, len(boxes))
	for _, box := range boxes {
		if box.Word == "" {
			continue
		}
		regions = append(regions, TextRegion{
			Text:       box.Word,
			Confidence: float64(box.Confidence) / 100.0,
			Bounds: Bounds{
				X1: box.Box.Min.X,
				Y1: box.Box.Min.Y,
				X2: box.Box.Max.X,
				Y2: box.Box.Max.Y,
			},
		})
	}
	return &OCRResult{FullText: text, Regions: regions}, nil
}

// OCRInfo describes the OCR subsystem.
type OCRInfo struct {
	Available bool     `json:"available"`
	Version   string   `json:"version,omitempty"`
	Languages []string `json:"languages,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// Info reports whether Tesseract is usable and which languages it has.
func Info() OCRInfo {
	langs, err := gosseract.GetAvailableLanguages()
	if err != nil {
		return OCRInfo{Available: false, Error: err.Error()}
	}
	return OCRInfo{
		Available: len(langs) > 0,
		Version:   gosseract.Version(),
		Languages: langs,
	}
}
