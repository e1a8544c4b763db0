package mask

import "sort"

// Set holds the masks computed for a video, keyed by frame index and then
// by object id. It is owned by the propagation engine; the materializer
// only reads it after processing completes.
type Set struct {
	frames map[int]map[int]*Mask
}

// NewSet creates an empty mask set.
func NewSet() *Set {
	return &Set{frames: make(map[int]map[int]*Mask)}
}

// Put stores a mask for (frameIdx, objectID), overwriting any earlier
// mask for the same pair. Last write wins across refinement passes.
func (s *Set) Put(frameIdx, objectID int, m *Mask) {
	objs, ok := s.frames[frameIdx]
	if !ok {
		objs = make(map[int]*Mask)
		s.frames[frameIdx] = objs
	}
	objs[objectID] = m
}

// Get returns the mask for (frameIdx, objectID), or nil when absent.
func (s *Set) Get(frameIdx, objectID int) *Mask {
	if objs, ok := s.frames[frameIdx]; ok {
		return objs[objectID]
	}
	return nil
}

// Has reports whether a mask exists for (frameIdx, objectID).
func (s *Set) Has(frameIdx, objectID int) bool {
	return s.Get(frameIdx, objectID) != nil
}

// Frames returns the frame indices holding at least one mask, in
// increasing order.
func (s *Set) Frames() []int {
	frames := make([]int, 0, len(s.frames))
	for f := range s.frames {
		frames = append(frames, f)
	}
	sort.Ints(frames)
	return frames
}

// Len returns the number of frames holding at least one mask.
func (s *Set) Len() int {
	return len(s.frames)
}

// nearestBefore returns the closest frame index below start that holds a
// mask for objectID.
func (s *Set) nearestBefore(objectID, start int) (int, bool) {
	for f := start - 1; f >= 0; f-- {
		if s.Has(f, objectID) {
			return f, true
		}
	}
	return 0, false
}

// nearestAtOrAfter returns the closest frame index in [start, frameCount)
// that holds a mask for objectID.
func (s *Set) nearestAtOrAfter(objectID, start, frameCount int) (int, bool) {
	for f := start; f < frameCount; f++ {
		if s.Has(f, objectID) {
			return f, true
		}
	}
	return 0, false
}
