// Package annotate defines the annotation point records supplied to the
// segmentation oracle at keyframes.
package annotate

import "sort"

// Label marks an annotation point as belonging to the object or to the
// background.
type Label int

const (
	// Negative marks a point as background.
	Negative Label = 0
	// Positive marks a point as part of the tracked object.
	Positive Label = 1
)

// CornerInset is the pixel distance of the fixed negative points from the
// image corners.
const CornerInset = 20

// Point is a single annotation point in a frame's pixel coordinate space.
type Point struct {
	X     int   `json:"x"`
	Y     int   `json:"y"`
	Label Label `json:"label"`
}

// Plan maps frame indices to the annotation points supplied at that frame.
type Plan map[int][]Point

// Frames returns the annotated frame indices in increasing order.
func (p Plan) Frames() []int {
	frames := make([]int, 0, len(p))
	for f := range p {
		frames = append(frames, f)
	}
	sort.Ints(frames)
	return frames
}

// GridPoints returns the default positive prompt for a frame: the image
// center plus one point per quadrant.
func GridPoints(width, height int) []Point {
	cx, cy := width/2, height/2
	return []Point{
		{X: cx, Y: cy, Label: Positive},
		{X: cx / 2, Y: cy / 2, Label: Positive},
		{X: cx + cx/2, Y: cy / 2, Label: Positive},
		{X: cx / 2, Y: cy + cy/2, Label: Positive},
		{X: cx + cx/2, Y: cy + cy/2, Label: Positive},
	}
}

// CornerNegatives returns the four fixed background points near the image
// corners. Every generated prompt includes these so the oracle keeps the
// frame border out of the object.
func CornerNegatives(width, height int) []Point {
	return []Point{
		{X: CornerInset, Y: CornerInset, Label: Negative},
		{X: width - CornerInset, Y: CornerInset, Label: Negative},
		{X: CornerInset, Y: height - CornerInset, Label: Negative},
		{X: width - CornerInset, Y: height - CornerInset, Label: Negative},
	}
}

// Record keeps the points submitted per frame so a propagation restart can
// re-prime the oracle from the most recent annotated frame.
type Record struct {
	points map[int][]Point
}

// NewRecord creates an empty annotation record.
func NewRecord() *Record {
	return &Record{points: make(map[int][]Point)}
}

// Add stores the points submitted at a frame, replacing any earlier entry.
func (r *Record) Add(frameIdx int, points []Point) {
	cp := make([]Point, len(points))
	copy(cp, points)
	r.points[frameIdx] = cp
}

// Get returns the points recorded at a frame.
func (r *Record) Get(frameIdx int) ([]Point, bool) {
	pts, ok := r.points[frameIdx]
	return pts, ok
}

// NearestAtOrBefore walks backward from frameIdx to frame 0 and returns the
// closest frame with a recorded annotation. The second return is the frame
// index, valid only when found is true.
func (r *Record) NearestAtOrBefore(frameIdx int) (points []Point, frame int, found bool) {
	for f := frameIdx; f >= 0; f-- {
		if pts, ok := r.points[f]; ok {
			return pts, f, true
		}
	}
	return nil, 0, false
}
