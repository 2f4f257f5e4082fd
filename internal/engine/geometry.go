package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

const (
	// DefaultNodeWidth is used when a node has no explicit width.
	DefaultNodeWidth = 420.0

	defaultAspectRatio = "16:9"
	cutModeExtra       = 36.0
)

// Rect represents an axis-aligned bounding box.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.X + r.Width }

// Bottom returns the y coordinate of the bottom edge.
func (r Rect) Bottom() float64 { return r.Y + r.Height }

// Contains checks if a point is inside the rect (edges included).
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width && y >= r.Y && y <= r.Y+r.Height
}

// Overlaps reports strict AABB intersection; touching edges do not overlap.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.Right() && r.Right() > o.X && r.Y < o.Bottom() && r.Bottom() > o.Y
}

// IsEmpty checks if the rect has zero or negative area.
func (r Rect) IsEmpty() bool {
	return r.Width <= 0 || r.Height <= 0
}

// Union returns the smallest rect containing both rects.
func (r Rect) Union(other Rect) Rect {
	if r.IsEmpty() {
		return other
	}
	if other.IsEmpty() {
		return r
	}

	minX := min(r.X, other.X)
	minY := min(r.Y, other.Y)
	maxX := max(r.X+r.Width, other.X+other.Width)
	maxY := max(r.Y+r.Height, other.Y+other.Height)

	return Rect{
		X:      minX,
		Y:      minY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}

// Inset grows the rect by m on every side (shrinks for negative m).
func (r Rect) Inset(m float64) Rect {
	return Rect{X: r.X - m, Y: r.Y - m, Width: r.Width + 2*m, Height: r.Height + 2*m}
}

// Center returns the center point of the rect.
func (r Rect) Center() (float64, float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Finite reports whether every component is a real number.
func (r Rect) Finite() bool {
	return finite(r.X) && finite(r.Y) && finite(r.Width) && finite(r.Height)
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// GroupRect returns the rectangle of a group.
func GroupRect(g document.Group) Rect {
	return Rect{X: g.X, Y: g.Y, Width: g.Width, Height: g.Height}
}

// NodeWidth returns the effective width of a node.
func NodeWidth(n *document.Node) float64 {
	if n.Width != nil && *n.Width > 0 {
		return *n.Width
	}
	return DefaultNodeWidth
}

// NodeHeight returns the effective height of a node. An explicit height always
// wins; some types have fixed heights, the story studio expands while selected,
// and everything else follows its aspect ratio.
func NodeHeight(n *document.Node, selected bool) float64 {
	if n.Height != nil && *n.Height > 0 {
		return *n.Height
	}

	switch n.Type {
	case document.NodePromptInput, document.NodeVideoAnalyzer, document.NodeImageEditor:
		return 360
	case document.NodeAudioGenerator:
		return 200
	case document.NodeStoryStudio:
		if selected {
			return 500
		}
		return 120
	case document.NodeCharacterReference, document.NodeSceneReference:
		return 400
	case document.NodeStoryboardShot:
		return 450
	case document.NodeMultiAngleCamera:
		return 800
	case document.NodeGridSplitter:
		return 480
	}

	w, h := ParseAspectRatio(n.Data.AspectRatio)
	extra := 0.0
	if n.Type == document.NodeVideoGenerator && n.Data.GenerationMode == document.VideoModeCut {
		extra = cutModeExtra
	}
	return NodeWidth(n)*h/w + extra
}

// NodeBounds composes the effective width and height of n at its position.
func NodeBounds(n *document.Node, selected bool) Rect {
	return Rect{X: n.X, Y: n.Y, Width: NodeWidth(n), Height: NodeHeight(n, selected)}
}

// ParseAspectRatio parses "W:H". Malformed or non-positive ratios fall back to 16:9.
func ParseAspectRatio(s string) (float64, float64) {
	if s == "" {
		s = defaultAspectRatio
	}
	ws, hs, ok := strings.Cut(s, ":")
	if ok {
		w, errW := strconv.ParseFloat(strings.TrimSpace(ws), 64)
		h, errH := strconv.ParseFloat(strings.TrimSpace(hs), 64)
		if errW == nil && errH == nil && w > 0 && h > 0 && finite(w) && finite(h) {
			return w, h
		}
	}
	return 16, 9
}
