// Package ocr reads text back out of images using Tesseract.
//
// It wraps the Tesseract engine (via gosseract/v2) and is used to audit the
// count labels baked into annotated results: the label band is cropped,
// recognized as a single line, and ParseCount extracts the number.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Options.TessdataPrefix overrides where traineddata files are looked up.
//
// # Functions
//
//   - ExtractText: OCR of an image file, with word bounding boxes
//   - ExtractTextFromImage: OCR of an in-memory image
//   - ExtractTextFromRegion: OCR of a rectangle, bounds mapped back to the image
//   - ParseCount: the detection total from recognized label text
//   - Info: whether Tesseract is usable
//
// If word-level bounding boxes are unavailable, the extract functions still
// return the recognized text with an empty Regions slice.
package ocr
