package engine

import (
	"encoding/json"
	"math"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

const (
	// PortHitRadius and ResizeHandleSize are in screen pixels.
	PortHitRadius    = 12.0
	ResizeHandleSize = 20.0

	portDrawRadius = 6.0
	groupCorner    = 32.0
)

// TargetKind classifies what lies under the pointer.
type TargetKind string

const (
	TargetCanvas TargetKind = "canvas"
	TargetNode   TargetKind = "node"
	TargetPort   TargetKind = "port"
	TargetResize TargetKind = "resize"
	TargetGroup  TargetKind = "group"
)

// Target is the result of a hit test.
type Target struct {
	Kind TargetKind `json:"kind"`
	ID   string     `json:"id,omitempty"`
	Port PortKind   `json:"port,omitempty"`
}

// PortPosition returns the world position of a node's port: inputs sit on the
// middle of the left edge, outputs on the middle of the right edge.
func PortPosition(b Rect, port PortKind) Point {
	if port == PortInput {
		return Point{X: b.X, Y: b.Y + b.Height/2}
	}
	return Point{X: b.Right(), Y: b.Y + b.Height/2}
}

func (v *Viewer) resolveTarget(ev PointerEvent) Target {
	if ev.Target != nil {
		return *ev.Target
	}
	return v.hitTest(ev.point())
}

// HitTest reports what is under a screen point. Ports win over resize handles,
// which win over node bodies, which win over groups. Later nodes are on top.
func (v *Viewer) HitTest(screen Point) Target {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	return v.hitTest(screen)
}

func (v *Viewer) hitTest(screen Point) Target {
	if !finite(screen.X) || !finite(screen.Y) {
		return Target{Kind: TargetCanvas}
	}
	p := v.viewport.ScreenToWorld(screen)
	nodes := v.e.store.scene.Nodes
	scale := v.viewport.Scale

	portR := PortHitRadius / scale
	for i := len(nodes) - 1; i >= 0; i-- {
		b := v.bounds(&nodes[i])
		for _, port := range []PortKind{PortInput, PortOutput} {
			pp := PortPosition(b, port)
			if math.Hypot(p.X-pp.X, p.Y-pp.Y) <= portR {
				return Target{Kind: TargetPort, ID: nodes[i].ID, Port: port}
			}
		}
	}

	handle := ResizeHandleSize / scale
	for i := len(nodes) - 1; i >= 0; i-- {
		b := v.bounds(&nodes[i])
		h := Rect{X: b.Right() - handle, Y: b.Bottom() - handle, Width: handle, Height: handle}
		if h.Contains(p.X, p.Y) {
			return Target{Kind: TargetResize, ID: nodes[i].ID}
		}
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		if v.bounds(&nodes[i]).Contains(p.X, p.Y) {
			return Target{Kind: TargetNode, ID: nodes[i].ID}
		}
	}

	groups := v.e.store.scene.Groups
	for i := len(groups) - 1; i >= 0; i-- {
		if GroupRect(groups[i]).Contains(p.X, p.Y) {
			return Target{Kind: TargetGroup, ID: groups[i].ID}
		}
	}
	return Target{Kind: TargetCanvas}
}

// Overlay describes transient interaction feedback for the host to draw.
type Overlay struct {
	Mode      string   `json:"mode"`
	Marquee   *Rect    `json:"marquee,omitempty"`
	WireFrom  *Point   `json:"wireFrom,omitempty"`
	WireTo    *Point   `json:"wireTo,omitempty"`
	ActiveIDs []string `json:"activeIds,omitempty"`
}

// overlay builds the feedback for the current interaction. Callers hold the engine lock.
func (v *Viewer) overlay() *Overlay {
	switch it := v.interaction.(type) {
	case *NodeDrag:
		return &Overlay{Mode: "node", ActiveIDs: []string{it.NodeID}}
	case *GroupDrag:
		o := &Overlay{Mode: "group"}
		for _, c := range it.Children {
			o.ActiveIDs = append(o.ActiveIDs, c.ID)
		}
		return o
	case *ResizeDrag:
		return &Overlay{Mode: "resize", ActiveIDs: []string{it.NodeID}}
	case *MarqueeDrag:
		r := it.Rect()
		return &Overlay{Mode: "marquee", Marquee: &r}
	case *PanDrag:
		return &Overlay{Mode: "pan"}
	case *ConnectionDrag:
		n := v.e.store.Node(it.NodeID)
		if n == nil {
			return nil
		}
		from := v.viewport.WorldToScreen(PortPosition(v.bounds(n), it.Port))
		to := it.Pointer
		return &Overlay{Mode: "connection", WireFrom: &from, WireTo: &to, ActiveIDs: []string{it.NodeID}}
	}
	return nil
}

// DrawCommand represents a single drawing operation for the frontend to execute.
// The frontend receives a list of these and executes them on a Canvas2D context.
type DrawCommand struct {
	Op          string        `json:"op"`                    // "path", "image", "text"
	ObjectID    string        `json:"objectId,omitempty"`    // For hit correlation
	Transform   []float64     `json:"transform,omitempty"`   // [a, b, c, d, e, f] affine matrix
	Path        []PathCommand `json:"path,omitempty"`        // Path data for "path" ops
	Fill        string        `json:"fill,omitempty"`        // Fill color
	Stroke      string        `json:"stroke,omitempty"`      // Stroke color
	StrokeWidth float64       `json:"strokeWidth,omitempty"` // Stroke width
	Opacity     float64       `json:"opacity,omitempty"`     // Global alpha
	Text        string        `json:"text,omitempty"`
	ImageSrc    string        `json:"imageSrc,omitempty"`
	Width       float64       `json:"width,omitempty"`
	Height      float64       `json:"height,omitempty"`
}

// PathCommand represents a single path segment for rendering.
// Format matches Canvas2D: ["M", x, y], ["L", x, y], ["C", x1, y1, x2, y2, x, y], etc.
type PathCommand []any

var statusColors = map[document.NodeStatus]string{
	document.StatusIdle:    "rgba(255,255,255,0.1)",
	document.StatusWorking: "#22d3ee",
	document.StatusSuccess: "#34d399",
	document.StatusError:   "#f87171",
}

// DrawCommands compiles the scene into painter's order (back to front):
// groups, wires, nodes with their ports, then interaction overlay.
func (v *Viewer) DrawCommands() []DrawCommand {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()

	view := v.viewport.Matrix()
	var cmds []DrawCommand

	for _, g := range v.e.store.scene.Groups {
		fill := "rgba(255,255,255,0.05)"
		if g.ID == v.selectedGroup {
			fill = "rgba(6,182,212,0.05)"
		}
		m := view.Multiply(Translate(g.X, g.Y)).ToSlice()
		cmds = append(cmds,
			DrawCommand{Op: "path", ObjectID: g.ID, Transform: m, Path: roundedRectPath(g.Width, g.Height, groupCorner), Fill: fill, Stroke: "rgba(255,255,255,0.1)", StrokeWidth: 1, Opacity: 1},
			DrawCommand{Op: "text", ObjectID: g.ID, Transform: view.Multiply(Translate(g.X+16, g.Y-12)).ToSlice(), Text: g.Title, Fill: "rgba(255,255,255,0.4)", Opacity: 1},
		)
	}

	for _, c := range v.e.store.scene.Connections {
		from, to := v.e.store.Node(c.From), v.e.store.Node(c.To)
		if from == nil || to == nil {
			continue
		}
		a := PortPosition(v.bounds(from), PortOutput)
		b := PortPosition(v.bounds(to), PortInput)
		cmds = append(cmds, DrawCommand{
			Op:          "path",
			ObjectID:    c.From + ">" + c.To,
			Transform:   view.ToSlice(),
			Path:        wirePath(a, b),
			Stroke:      "rgba(255,255,255,0.3)",
			StrokeWidth: 2,
			Opacity:     1,
		})
	}

	for i := range v.e.store.scene.Nodes {
		n := &v.e.store.scene.Nodes[i]
		b := v.bounds(n)
		m := view.Multiply(Translate(b.X, b.Y)).ToSlice()
		stroke := statusColors[n.Status]
		if v.isSelected(n.ID) {
			stroke = "#06b6d4"
		}
		cmds = append(cmds, DrawCommand{Op: "path", ObjectID: n.ID, Transform: m, Path: roundedRectPath(b.Width, b.Height, 24), Fill: "#1c1c1e", Stroke: stroke, StrokeWidth: 1, Opacity: 1})
		if src := previewSource(n); src != "" {
			cmds = append(cmds, DrawCommand{Op: "image", ObjectID: n.ID, Transform: m, ImageSrc: src, Width: b.Width, Height: b.Height, Opacity: 1})
		}
		cmds = append(cmds, DrawCommand{Op: "text", ObjectID: n.ID, Transform: view.Multiply(Translate(b.X+12, b.Y-8)).ToSlice(), Text: n.Title, Fill: "rgba(255,255,255,0.6)", Opacity: 1})
		for _, port := range []PortKind{PortInput, PortOutput} {
			pp := PortPosition(b, port)
			cmds = append(cmds, DrawCommand{
				Op:        "path",
				ObjectID:  n.ID,
				Transform: view.Multiply(Translate(pp.X, pp.Y)).ToSlice(),
				Path:      circlePath(portDrawRadius),
				Fill:      "#2c2c2e",
				Stroke:    "rgba(255,255,255,0.4)",
				Opacity:   1,
			})
		}
	}

	if o := v.overlay(); o != nil {
		switch {
		case o.Marquee != nil:
			r := *o.Marquee
			cmds = append(cmds, DrawCommand{Op: "path", Transform: Translate(r.X, r.Y).ToSlice(), Path: roundedRectPath(r.Width, r.Height, 0), Fill: "rgba(6,182,212,0.1)", Stroke: "#06b6d4", StrokeWidth: 1, Opacity: 1})
		case o.WireFrom != nil && o.WireTo != nil:
			cmds = append(cmds, DrawCommand{Op: "path", Transform: Identity().ToSlice(), Path: wirePath(*o.WireFrom, *o.WireTo), Stroke: "#22d3ee", StrokeWidth: 2, Opacity: 1})
		}
	}
	return cmds
}

// DrawCommandsJSON serializes the current draw commands.
func (v *Viewer) DrawCommandsJSON() string {
	data, err := json.Marshal(v.DrawCommands())
	if err != nil {
		return "[]"
	}
	return string(data)
}

func previewSource(n *document.Node) string {
	switch {
	case n.Data.CroppedFrame != "":
		return n.Data.CroppedFrame
	case n.Data.Image != "":
		return n.Data.Image
	case len(n.Data.Images) > 0:
		return n.Data.Images[0]
	}
	return ""
}

func roundedRectPath(w, h, r float64) []PathCommand {
	r = min(r, w/2, h/2)
	if r <= 0 {
		return []PathCommand{
			{"M", 0.0, 0.0},
			{"L", w, 0.0},
			{"L", w, h},
			{"L", 0.0, h},
			{"Z"},
		}
	}
	return []PathCommand{
		{"M", r, 0.0},
		{"L", w - r, 0.0},
		{"Q", w, 0.0, w, r},
		{"L", w, h - r},
		{"Q", w, h, w - r, h},
		{"L", r, h},
		{"Q", 0.0, h, 0.0, h - r},
		{"L", 0.0, r},
		{"Q", 0.0, 0.0, r, 0.0},
		{"Z"},
	}
}

// circlePath approximates a circle with four bezier curves.
func circlePath(r float64) []PathCommand {
	// k = 4 * (sqrt(2) - 1) / 3
	k := 0.5522847498 * r
	return []PathCommand{
		{"M", r, 0.0},
		{"C", r, k, k, r, 0.0, r},
		{"C", -k, r, -r, k, -r, 0.0},
		{"C", -r, -k, -k, -r, 0.0, -r},
		{"C", k, -r, r, -k, r, 0.0},
		{"Z"},
	}
}

// wirePath is a horizontal S-curve between two ports.
func wirePath(a, b Point) []PathCommand {
	dx := max(math.Abs(b.X-a.X)*0.5, 40)
	return []PathCommand{
		{"M", a.X, a.Y},
		{"C", a.X + dx, a.Y, b.X - dx, b.Y, b.X, b.Y},
	}
}
