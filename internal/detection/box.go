package detection

import (
	"image"
	"sort"
)

// Box is one detection in source-image pixel coordinates.
type Box struct {
	X1    float32 `json:"x1"`
	Y1    float32 `json:"y1"`
	X2    float32 `json:"x2"`
	Y2    float32 `json:"y2"`
	Score float32 `json:"score"`
	Class int     `json:"class"`
}

// Corners returns the box corners truncated to integer pixels.
func (b Box) Corners() (image.Point, image.Point) {
	return image.Pt(int(b.X1), int(b.Y1)), image.Pt(int(b.X2), int(b.Y2))
}

// Area returns the box area, zero for degenerate boxes.
func (b Box) Area() float32 {
	w, h := b.X2-b.X1, b.Y2-b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// IoU returns the intersection over union of a and b.
func IoU(a, b Box) float32 {
	ix1, iy1 := max32(a.X1, b.X1), max32(a.Y1, b.Y1)
	ix2, iy2 := min32(a.X2, b.X2), min32(a.Y2, b.Y2)
	inter := Box{X1: ix1, Y1: iy1, X2: ix2, Y2: iy2}.Area()
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}

// NMS performs class-aware non-maximum suppression. Boxes of the same class
// overlapping a higher-scoring kept box by more than iou are dropped. The
// result is sorted by descending score and holds at most limit boxes when
// limit is positive.
func NMS(boxes []Box, iou float32, limit int) []Box {
	sorted := make([]Box, len(boxes))
	copy(sorted, boxes)
	SortByScore(sorted)

	kept := make([]Box, 0, len(sorted))
	for _, cand := range sorted {
		suppressed := false
		for _, k := range kept {
			if k.Class == cand.Class && IoU(k, cand) > iou {
				suppressed = true
				break
			}
		}
		if suppressed {
			continue
		}
		kept = append(kept, cand)
		if limit > 0 && len(kept) == limit {
			break
		}
	}
	return kept
}

// SortByScore orders boxes by descending score, keeping ties stable.
func SortByScore(boxes []Box) {
	sort.SliceStable(boxes, func(i, j int) bool {
		return boxes[i].Score > boxes[j].Score
	})
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func clamp32(v, lo, hi float32) float32 {
	return max32(lo, min32(v, hi))
}
