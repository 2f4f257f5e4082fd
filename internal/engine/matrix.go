package engine

// Matrix2D is the canvas transform handed to the renderer, in the
// [a, b, c, d, e, f] order of CanvasRenderingContext2D.setTransform:
//
//	| a  c  e |
//	| b  d  f |
//	| 0  0  1 |
//
// Viewports only produce uniform scale plus pan, so world to screen is
// Translate(pan) * Scale(zoom) and Invert maps pointer positions back into the
// world.
type Matrix2D [6]float64

// Identity draws in screen space, as overlays such as the pending wire do.
func Identity() Matrix2D {
	return Matrix2D{1, 0, 0, 1, 0, 0}
}

// Translate offsets by (tx, ty). Draw commands use it to place an item at its
// world position before the view transform applies.
func Translate(tx, ty float64) Matrix2D {
	return Matrix2D{1, 0, 0, 1, tx, ty}
}

// Scale is the zoom part of a viewport.
func Scale(sx, sy float64) Matrix2D {
	return Matrix2D{sx, 0, 0, sy, 0, 0}
}

// Multiply returns m * other, so other applies first. view.Multiply(Translate(x, y))
// puts a node at (x, y) in the world and then on screen.
func (m Matrix2D) Multiply(other Matrix2D) Matrix2D {
	return Matrix2D{
		m[0]*other[0] + m[2]*other[1],
		m[1]*other[0] + m[3]*other[1],
		m[0]*other[2] + m[2]*other[3],
		m[1]*other[2] + m[3]*other[3],
		m[0]*other[4] + m[2]*other[5] + m[4],
		m[1]*other[4] + m[3]*other[5] + m[5],
	}
}

func (m Matrix2D) TransformPoint(x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// TransformRect maps r and returns the box around its corners. The marquee is
// drawn on screen and tested against nodes in world space through this.
func (m Matrix2D) TransformRect(r Rect) Rect {
	minX, minY := m.TransformPoint(r.X, r.Y)
	maxX, maxY := minX, minY
	for _, c := range [...][2]float64{
		{r.X + r.Width, r.Y},
		{r.X + r.Width, r.Y + r.Height},
		{r.X, r.Y + r.Height},
	} {
		x, y := m.TransformPoint(c[0], c[1])
		minX, maxX = min(minX, x), max(maxX, x)
		minY, maxY = min(minY, y), max(maxY, y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func (m Matrix2D) Determinant() float64 {
	return m[0]*m[3] - m[1]*m[2]
}

// Invert turns a world to screen transform into screen to world. A degenerate
// matrix cannot come from a clamped viewport; it inverts to Identity.
func (m Matrix2D) Invert() Matrix2D {
	det := m.Determinant()
	if det == 0 {
		return Identity()
	}
	k := 1 / det
	return Matrix2D{
		m[3] * k,
		-m[1] * k,
		-m[2] * k,
		m[0] * k,
		(m[2]*m[5] - m[3]*m[4]) * k,
		(m[1]*m[4] - m[0]*m[5]) * k,
	}
}

// ToSlice is the draw command's Transform field.
func (m Matrix2D) ToSlice() []float64 {
	return m[:]
}
