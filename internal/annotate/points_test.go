package annotate

import "testing"

func TestPlanFrames(t *testing.T) {
	plan := Plan{
		20: {{X: 1, Y: 1, Label: Positive}},
		0:  {{X: 2, Y: 2, Label: Positive}},
		10: {{X: 3, Y: 3, Label: Negative}},
	}

	frames := plan.Frames()
	want := []int{0, 10, 20}
	if len(frames) != len(want) {
		t.Fatalf("Frames() length = %d, want %d", len(frames), len(want))
	}
	for i := range want {
		if frames[i] != want[i] {
			t.Errorf("Frames()[%d] = %d, want %d", i, frames[i], want[i])
		}
	}
}

func TestGridPoints(t *testing.T) {
	pts := GridPoints(640, 480)
	if len(pts) != 5 {
		t.Fatalf("GridPoints returned %d points, want 5", len(pts))
	}
	for i, p := range pts {
		if p.Label != Positive {
			t.Errorf("point %d label = %d, want Positive", i, p.Label)
		}
		if p.X < 0 || p.X >= 640 || p.Y < 0 || p.Y >= 480 {
			t.Errorf("point %d (%d,%d) outside frame", i, p.X, p.Y)
		}
	}
	if pts[0].X != 320 || pts[0].Y != 240 {
		t.Errorf("first point = (%d,%d), want center (320,240)", pts[0].X, pts[0].Y)
	}
}

func TestCornerNegatives(t *testing.T) {
	pts := CornerNegatives(640, 480)
	if len(pts) != 4 {
		t.Fatalf("CornerNegatives returned %d points, want 4", len(pts))
	}
	for i, p := range pts {
		if p.Label != Negative {
			t.Errorf("point %d label = %d, want Negative", i, p.Label)
		}
	}
	if pts[3].X != 620 || pts[3].Y != 460 {
		t.Errorf("bottom-right = (%d,%d), want (620,460)", pts[3].X, pts[3].Y)
	}
}

func TestRecordNearestAtOrBefore(t *testing.T) {
	r := NewRecord()
	r.Add(0, []Point{{X: 1, Y: 1, Label: Positive}})
	r.Add(10, []Point{{X: 2, Y: 2, Label: Positive}})

	tests := []struct {
		name      string
		frame     int
		wantFrame int
		wantFound bool
	}{
		{name: "exact hit", frame: 10, wantFrame: 10, wantFound: true},
		{name: "between annotations", frame: 7, wantFrame: 0, wantFound: true},
		{name: "after last", frame: 25, wantFrame: 10, wantFound: true},
		{name: "at zero", frame: 0, wantFrame: 0, wantFound: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, frame, found := r.NearestAtOrBefore(tt.frame)
			if found != tt.wantFound {
				t.Fatalf("found = %v, want %v", found, tt.wantFound)
			}
			if frame != tt.wantFrame {
				t.Errorf("frame = %d, want %d", frame, tt.wantFrame)
			}
		})
	}

	empty := NewRecord()
	if _, _, found := empty.NearestAtOrBefore(5); found {
		t.Error("empty record reported an annotation")
	}
}

func TestRecordAddCopies(t *testing.T) {
	r := NewRecord()
	pts := []Point{{X: 1, Y: 1, Label: Positive}}
	r.Add(0, pts)

	pts[0].X = 99
	got, _ := r.Get(0)
	if got[0].X != 1 {
		t.Error("record shares backing array with caller slice")
	}
}
