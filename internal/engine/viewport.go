package engine

const (
	MinScale = 0.2
	MaxScale = 3.0

	// FitPadding is the screen-space margin kept around content by FitView.
	FitPadding = 100.0

	wheelZoomFactor = 0.001
)

// Point is a 2D coordinate, in screen or world space depending on context.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport maps world (canvas) coordinates to screen coordinates:
// screen = world*Scale + Pan.
type Viewport struct {
	Scale float64 `json:"scale"`
	Pan   Point   `json:"pan"`
}

// NewViewport returns the identity viewport.
func NewViewport() Viewport {
	return Viewport{Scale: 1}
}

// ClampScale limits s to [MinScale, MaxScale].
func ClampScale(s float64) float64 {
	return min(max(s, MinScale), MaxScale)
}

// Matrix returns the world-to-screen transform.
func (v Viewport) Matrix() Matrix2D {
	return Translate(v.Pan.X, v.Pan.Y).Multiply(Scale(v.Scale, v.Scale))
}

// WorldToScreen converts a world point to screen coordinates.
func (v Viewport) WorldToScreen(p Point) Point {
	x, y := v.Matrix().TransformPoint(p.X, p.Y)
	return Point{X: x, Y: y}
}

// ScreenToWorld converts a screen point to world coordinates.
func (v Viewport) ScreenToWorld(p Point) Point {
	x, y := v.Matrix().Invert().TransformPoint(p.X, p.Y)
	return Point{X: x, Y: y}
}

// ScreenRectToWorld converts a screen-space rectangle to world space.
func (v Viewport) ScreenRectToWorld(r Rect) Rect {
	return v.Matrix().Invert().TransformRect(r)
}

// ZoomAt rescales around screenPoint so the world point under it stays put.
// Non-finite input leaves the viewport unchanged.
func (v *Viewport) ZoomAt(screenPoint Point, newScale float64) {
	if !finite(screenPoint.X) || !finite(screenPoint.Y) || !finite(newScale) || v.Scale == 0 {
		return
	}
	newScale = ClampScale(newScale)
	ratio := (newScale - v.Scale) / v.Scale
	v.Pan.X -= (screenPoint.X - v.Pan.X) * ratio
	v.Pan.Y -= (screenPoint.Y - v.Pan.Y) * ratio
	v.Scale = newScale
}

// PanBy translates the viewport by a screen-space delta.
func (v *Viewport) PanBy(dx, dy float64) {
	if !finite(dx) || !finite(dy) {
		return
	}
	v.Pan.X += dx
	v.Pan.Y += dy
}

// Wheel applies a wheel event: with the pan modifier it scrolls, otherwise it
// zooms about the cursor.
func (v *Viewport) Wheel(at Point, deltaX, deltaY float64, panModifier bool) {
	if panModifier {
		v.PanBy(-deltaX, -deltaY)
		return
	}
	v.ZoomAt(at, v.Scale-deltaY*wheelZoomFactor)
}

// Fit centres content inside a screen of the given size. An empty or
// degenerate content rect resets the viewport to identity.
func (v *Viewport) Fit(content Rect, screenW, screenH float64) {
	if !content.Finite() || content.Width < 0 || content.Height < 0 || screenW <= 0 || screenH <= 0 {
		*v = NewViewport()
		return
	}

	scale := 1.0
	if content.Width > 0 {
		scale = min(scale, (screenW-FitPadding*2)/content.Width)
	}
	if content.Height > 0 {
		scale = min(scale, (screenH-FitPadding*2)/content.Height)
	}
	scale = max(MinScale, scale)

	cx, cy := content.Center()
	v.Scale = scale
	v.Pan = Point{X: screenW/2 - cx*scale, Y: screenH/2 - cy*scale}
}
