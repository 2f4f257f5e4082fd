package engine

import "math"

const (
	// SnapThreshold is the magnetic snap distance in screen pixels.
	SnapThreshold = 8.0

	// CollisionPadding is the gap left between a dropped node and the node it
	// was pushed off.
	CollisionPadding = 24.0
)

// Snap aligns a proposed rect against the other rects. Each axis snaps at most
// once: the first other rect with an edge pair closer than threshold wins, with
// pairs tried left-left, left-right, right-left, right-right, center-center
// (and the same for top/bottom/middle on Y).
func Snap(proposed Rect, others []Rect, threshold float64) (float64, float64) {
	x, y := proposed.X, proposed.Y
	w, h := proposed.Width, proposed.Height
	snappedX, snappedY := false, false

	near := func(a, b float64) bool { return math.Abs(a-b) < threshold }

	myL, myC, myR := proposed.X, proposed.X+w/2, proposed.X+w
	myT, myM, myB := proposed.Y, proposed.Y+h/2, proposed.Y+h

	for _, o := range others {
		if snappedX && snappedY {
			break
		}
		ocx, ocy := o.Center()
		if !snappedX {
			snappedX = true
			switch {
			case near(myL, o.X):
				x = o.X
			case near(myL, o.Right()):
				x = o.Right()
			case near(myR, o.X):
				x = o.X - w
			case near(myR, o.Right()):
				x = o.Right() - w
			case near(myC, ocx):
				x = ocx - w/2
			default:
				snappedX = false
			}
		}
		if !snappedY {
			snappedY = true
			switch {
			case near(myT, o.Y):
				y = o.Y
			case near(myT, o.Bottom()):
				y = o.Bottom()
			case near(myB, o.Y):
				y = o.Y - h
			case near(myB, o.Bottom()):
				y = o.Bottom() - h
			case near(myM, ocy):
				y = ocy - h/2
			default:
				snappedY = false
			}
		}
	}
	return x, y
}

// ResolveCollisions pushes r out of every overlapping rect along the axis of
// least overlap, plus padding. It makes a single pass over others in order;
// a push can create a new overlap with a rect already visited.
func ResolveCollisions(r Rect, others []Rect, padding float64) Rect {
	for _, o := range others {
		if !r.Overlaps(o) {
			continue
		}
		left := r.Right() - o.X
		right := o.Right() - r.X
		top := r.Bottom() - o.Y
		bottom := o.Bottom() - r.Y

		switch min(left, right, top, bottom) {
		case left:
			r.X = o.X - r.Width - padding
		case right:
			r.X = o.Right() + padding
		case top:
			r.Y = o.Y - r.Height - padding
		case bottom:
			r.Y = o.Bottom() + padding
		}
	}
	return r
}
