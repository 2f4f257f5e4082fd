package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

var imageRect = Rect{X: 0, Y: 0, Width: 420, Height: 420 * 9.0 / 16}

func TestSnap(t *testing.T) {
	tests := []struct {
		name     string
		proposed Rect
		wantX    float64
		wantY    float64
	}{
		{"left edge to right edge", Rect{X: 425, Y: 500, Width: 420, Height: 236.25}, 420, 500},
		{"outside threshold", Rect{X: 430, Y: 500, Width: 420, Height: 236.25}, 430, 500},
		{"left to left", Rect{X: -5, Y: 900, Width: 300, Height: 100}, 0, 900},
		{"right to left", Rect{X: -303, Y: 900, Width: 300, Height: 100}, -300, 900},
		{"centres", Rect{X: 62, Y: 900, Width: 300, Height: 100}, 60, 900},
		{"top to bottom", Rect{X: 2000, Y: 240, Width: 300, Height: 100}, 2000, 236.25},
		{"bottom to top", Rect{X: 2000, Y: -97, Width: 300, Height: 100}, 2000, -100},
		{"both axes", Rect{X: 3, Y: 241, Width: 420, Height: 100}, 0, 236.25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := Snap(tt.proposed, []Rect{imageRect}, SnapThreshold)
			assert.InDelta(t, tt.wantX, x, 1e-9)
			assert.InDelta(t, tt.wantY, y, 1e-9)
		})
	}
}

func TestSnapIsIdempotent(t *testing.T) {
	r := Rect{X: 425, Y: 3, Width: 420, Height: 236.25}
	x, y := Snap(r, []Rect{imageRect}, SnapThreshold)
	r.X, r.Y = x, y
	x2, y2 := Snap(r, []Rect{imageRect}, SnapThreshold)
	assert.Equal(t, x, x2)
	assert.Equal(t, y, y2)
}

func TestSnapFirstMatchPerAxis(t *testing.T) {
	others := []Rect{
		{X: 0, Y: 0, Width: 100, Height: 100},
		{X: 3, Y: 1000, Width: 100, Height: 100},
	}
	x, _ := Snap(Rect{X: 2, Y: 500, Width: 50, Height: 50}, others, SnapThreshold)
	assert.Equal(t, 0.0, x, "the earlier rect wins even though the later one is closer")
}

func TestResolveCollisions(t *testing.T) {
	r := Rect{X: 400, Y: 100, Width: 420, Height: 236.25}
	got := ResolveCollisions(r, []Rect{imageRect}, CollisionPadding)
	assert.Equal(t, 444.0, got.X)
	assert.Equal(t, 100.0, got.Y)

	up := ResolveCollisions(Rect{X: 10, Y: -200, Width: 420, Height: 236.25}, []Rect{imageRect}, CollisionPadding)
	assert.Equal(t, 10.0, up.X)
	assert.Equal(t, -236.25-CollisionPadding, up.Y)

	clear := Rect{X: 420, Y: 0, Width: 10, Height: 10}
	assert.Equal(t, clear, ResolveCollisions(clear, []Rect{imageRect}, CollisionPadding), "touching is not overlapping")
}

func TestNodeDragResolvesCollisionOnRelease(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("b", document.NodeImageGenerator, 0, 0),
		node("a", document.NodeImageGenerator, 1000, 0),
	}, nil, nil)

	e.PointerDown(down(1200, 100))
	e.PointerMove(down(600, 200))
	mid := mustNode(t, e, "a")
	assert.Equal(t, 400.0, mid.X, "no collision handling while dragging")

	e.PointerUp(down(600, 200))
	a := mustNode(t, e, "a")
	assert.Equal(t, 444.0, a.X)
	assert.Equal(t, 100.0, a.Y)
}

func TestSnapThresholdIsScreenSpace(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("b", document.NodeImageGenerator, 0, 0),
		node("a", document.NodeImageGenerator, 1000, 500),
	}, nil, nil)
	e.ZoomAt(Point{}, 2)

	// world (1200, 550); 1150 screen px left moves the node 575 world units
	e.PointerDown(down(2400, 1100))
	e.PointerMove(down(1250, 1100))
	assert.Equal(t, 425.0, mustNode(t, e, "a").X, "5 world units is 10 screen px at scale 2")

	e.PointerMove(down(1244, 1100))
	assert.Equal(t, 420.0, mustNode(t, e, "a").X, "2 world units is 4 screen px")
	e.PointerUp(down(1244, 1100))
}
