package mask

// FillReport summarizes a gap-filling pass.
type FillReport struct {
	Interpolated int
	Copied       int
	// Unresolved lists frames that could not be filled because no
	// reference mask exists on either side.
	Unresolved []int
}

// FillRange fills every unmasked frame in [start, end) for objectID using
// the nearest reference masks. With references on both sides each frame is
// linearly interpolated; with a single reference its mask is copied
// unchanged; with none the frame stays bare and is reported as unresolved.
// Frames that already hold a mask are left untouched, so re-running on a
// fully masked range is a no-op.
func FillRange(s *Set, objectID, start, end, frameCount int) FillReport {
	var rep FillReport

	beforeIdx, hasBefore := s.nearestBefore(objectID, start)
	afterIdx, hasAfter := s.nearestAtOrAfter(objectID, end, frameCount)

	for f := start; f < end; f++ {
		if s.Has(f, objectID) {
			continue
		}

		switch {
		case hasBefore && hasAfter:
			before := s.Get(beforeIdx, objectID)
			after := s.Get(afterIdx, objectID)
			alpha := float64(f-beforeIdx) / float64(afterIdx-beforeIdx)
			s.Put(f, objectID, Interpolate(before, after, alpha))
			rep.Interpolated++
		case hasBefore:
			s.Put(f, objectID, s.Get(beforeIdx, objectID).Clone())
			rep.Copied++
		case hasAfter:
			s.Put(f, objectID, s.Get(afterIdx, objectID).Clone())
			rep.Copied++
		default:
			rep.Unresolved = append(rep.Unresolved, f)
		}
	}
	return rep
}

// FillGaps fills every unmasked frame in [0, frameCount) for objectID.
// This is the standalone mask-filling primitive used when propagation is
// skipped entirely, and the completion sweep after propagation.
func FillGaps(s *Set, objectID, frameCount int) FillReport {
	var rep FillReport
	f := 0
	for f < frameCount {
		if s.Has(f, objectID) {
			f++
			continue
		}
		// Extend the gap to its end so each run is filled as a unit.
		end := f
		for end < frameCount && !s.Has(end, objectID) {
			end++
		}
		r := FillRange(s, objectID, f, end, frameCount)
		rep.Interpolated += r.Interpolated
		rep.Copied += r.Copied
		rep.Unresolved = append(rep.Unresolved, r.Unresolved...)
		f = end
	}
	return rep
}
