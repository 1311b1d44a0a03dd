package annotate

import (
	"fmt"
	"image"
	"image/color"

	"github.com/ironsheep/palmcount/internal/config"
	"github.com/ironsheep/palmcount/internal/detection"
	"github.com/ironsheep/palmcount/internal/imaging"
)

// Annotator draws count boxes and the total label onto result images.
type Annotator struct {
	boxColor  color.RGBA
	thickness int
	format    string
	anchor    image.Point
	pad       int
	style     imaging.LabelStyle
}

// NewAnnotator resolves the drawing settings, rejecting unparsable colors.
func NewAnnotator(d config.Draw) (*Annotator, error) {
	boxColor, err := imaging.ParseHexColor(d.BoxColor)
	if err != nil {
		return nil, fmt.Errorf("box color: %w", err)
	}
	style, err := LabelStyle(d)
	if err != nil {
		return nil, err
	}
	return &Annotator{
		boxColor:  boxColor,
		thickness: d.BoxThickness,
		format:    d.LabelFormat,
		anchor:    image.Pt(d.LabelX, d.LabelY),
		pad:       d.LabelPadding,
		style:     style,
	}, nil
}

// LabelStyle builds the text style for the total label.
func LabelStyle(d config.Draw) (imaging.LabelStyle, error) {
	fg, err := imaging.ParseHexColor(d.TextColor)
	if err != nil {
		return imaging.LabelStyle{}, fmt.Errorf("text color: %w", err)
	}
	bg, err := imaging.ParseHexColor(d.BackgroundColor)
	if err != nil {
		return imaging.LabelStyle{}, fmt.Errorf("background color: %w", err)
	}
	return imaging.LabelStyle{
		Scale:      d.FontScale,
		Thickness:  d.FontThickness,
		Color:      fg,
		Background: bg,
	}, nil
}

// Label formats the total label for count detections.
func (a *Annotator) Label(count int) string {
	return fmt.Sprintf(a.format, count)
}

// Annotate outlines every box on img and stamps the total label. It draws
// into img in place and returns the number of boxes drawn.
func (a *Annotator) Annotate(img *image.RGBA, boxes []detection.Box) (int, error) {
	count := 0
	for _, b := range boxes {
		count++
		p1, p2 := b.Corners()
		imaging.StrokeRect(img, p1, p2, a.boxColor, a.thickness)
	}

	if _, err := imaging.DrawLabel(img, a.Label(count), a.anchor, a.pad, a.style); err != nil {
		return count, fmt.Errorf("draw label: %w", err)
	}
	return count, nil
}
