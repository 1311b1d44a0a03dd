// Package imaging provides the raster operations shared by detection,
// annotation, collage building and the MCP server.
//
// It covers decoding and encoding JPEG and PNG files, drawing rectangles and
// text labels into RGBA buffers, cutting regions out for OCR, and laying out
// equally sized tiles into a grid. Coordinates use the usual image convention:
// (0,0) is the top-left corner, X grows rightward and Y grows downward.
//
// # Corners
//
// StrokeRect and FillRect take two inclusive corner points, the way box
// detectors report them. Crop and LabelBand take image.Rectangle values, whose
// Max is exclusive.
//
// # Labels
//
// Labels are rendered with the bold Go TrueType font. LabelStyle.Scale follows
// the stroke-font convention of image toolkits, so a scale of 6 produces
// capitals roughly 130 pixels tall. Stroke thickness is emulated by stamping
// the rasterized text at every offset inside a disk of that diameter.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Drawing functions mutate the
// destination and must not be called concurrently on the same image.
package imaging
