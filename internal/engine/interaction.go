package engine

import (
	"math"
	"slices"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

const (
	// MinNodeWidth and MinNodeHeight bound resize drags.
	MinNodeWidth  = 360.0
	MinNodeHeight = 240.0

	// MarqueeMinWidth rejects accidental clicks on the canvas as selections.
	MarqueeMinWidth = 10.0
)

// Mouse buttons as reported by the host.
const (
	ButtonLeft   = 0
	ButtonMiddle = 1
)

// Interaction is the current pointer mode. Exactly one of the concrete types
// below, or nil when idle.
type Interaction interface {
	interaction()
}

// NodeDrag moves one node with magnetic snapping; collisions resolve on release.
type NodeDrag struct {
	NodeID        string   `json:"nodeId"`
	StartX        float64  `json:"startX"`
	StartY        float64  `json:"startY"`
	PointerStart  Point    `json:"pointerStart"`
	ParentGroupID string   `json:"parentGroupId,omitempty"`
	SiblingIDs    []string `json:"siblingIds,omitempty"`
	Width         float64  `json:"width"`
	Height        float64  `json:"height"`
}

// ChildStart is a group member's position when a group drag began.
type ChildStart struct {
	ID     string  `json:"id"`
	StartX float64 `json:"startX"`
	StartY float64 `json:"startY"`
}

// GroupDrag moves a group and the nodes it contained at pointer-down.
type GroupDrag struct {
	GroupID      string       `json:"groupId"`
	StartX       float64      `json:"startX"`
	StartY       float64      `json:"startY"`
	PointerStart Point        `json:"pointerStart"`
	Children     []ChildStart `json:"children"`
}

// ResizeDrag changes a node's explicit size from its bottom-right handle.
type ResizeDrag struct {
	NodeID        string  `json:"nodeId"`
	InitialWidth  float64 `json:"initialWidth"`
	InitialHeight float64 `json:"initialHeight"`
	PointerStart  Point   `json:"pointerStart"`
}

// MarqueeDrag is a rubber-band selection in screen space.
type MarqueeDrag struct {
	Start   Point `json:"start"`
	Current Point `json:"current"`
}

// PanDrag scrolls the viewport.
type PanDrag struct {
	Last Point `json:"last"`
}

// ConnectionDrag draws a wire from a port to the pointer.
type ConnectionDrag struct {
	NodeID  string   `json:"nodeId"`
	Port    PortKind `json:"port"`
	Pointer Point    `json:"pointer"`
}

func (*NodeDrag) interaction()       {}
func (*GroupDrag) interaction()      {}
func (*ResizeDrag) interaction()     {}
func (*MarqueeDrag) interaction()    {}
func (*PanDrag) interaction()        {}
func (*ConnectionDrag) interaction() {}

// Rect returns the normalised screen rectangle of the marquee.
func (m *MarqueeDrag) Rect() Rect {
	return Rect{
		X:      min(m.Start.X, m.Current.X),
		Y:      min(m.Start.Y, m.Current.Y),
		Width:  math.Abs(m.Current.X - m.Start.X),
		Height: math.Abs(m.Current.Y - m.Start.Y),
	}
}

// SmartConnectMenu offers to create a node pre-wired to the port a connection
// drag started from. It opens when such a drag is released over empty canvas.
type SmartConnectMenu struct {
	SourceID string              `json:"sourceId"`
	Port     PortKind            `json:"port"`
	Types    []document.NodeType `json:"types"`
	Screen   Point               `json:"screen"`
	World    Point               `json:"world"`
}

// PointerEvent is a pointer event in screen coordinates. Target, when set,
// overrides hit-testing (hosts that render their own DOM know what was hit).
type PointerEvent struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Button int     `json:"button"`
	Shift  bool    `json:"shift"`
	Ctrl   bool    `json:"ctrl"`
	Target *Target `json:"target,omitempty"`
}

func (ev PointerEvent) point() Point { return Point{X: ev.X, Y: ev.Y} }

func (ev PointerEvent) valid() bool { return finite(ev.X) && finite(ev.Y) }

// PointerDown starts an interaction based on what is under the pointer.
func (v *Viewer) PointerDown(ev PointerEvent) bool {
	if !ev.valid() {
		return false
	}
	return v.e.mutate(func() bool {
		if v.interaction != nil {
			v.pointerUp(ev)
		}
		v.menu = nil
		p := ev.point()

		if ev.Button == ButtonMiddle {
			v.interaction = &PanDrag{Last: p}
			return true
		}
		if ev.Button != ButtonLeft {
			return false
		}

		t := v.resolveTarget(ev)
		switch t.Kind {
		case TargetPort:
			if v.e.store.Node(t.ID) == nil || !t.Port.Valid() {
				return false
			}
			v.interaction = &ConnectionDrag{NodeID: t.ID, Port: t.Port, Pointer: p}
		case TargetResize:
			n := v.e.store.Node(t.ID)
			if n == nil {
				return false
			}
			b := v.bounds(n)
			v.e.snapshot()
			v.interaction = &ResizeDrag{NodeID: n.ID, InitialWidth: b.Width, InitialHeight: b.Height, PointerStart: p}
		case TargetNode:
			return v.beginNodeDrag(t.ID, p, ev.Shift || ev.Ctrl)
		case TargetGroup:
			if ev.Shift {
				v.interaction = &PanDrag{Last: p}
				return true
			}
			return v.beginGroupDrag(t.ID, p)
		default:
			if ev.Shift {
				v.interaction = &PanDrag{Last: p}
				return true
			}
			v.selection = nil
			v.selectedGroup = ""
			v.interaction = &MarqueeDrag{Start: p, Current: p}
		}
		return true
	})
}

func (v *Viewer) beginNodeDrag(id string, p Point, toggle bool) bool {
	n := v.e.store.Node(id)
	if n == nil {
		return false
	}
	if toggle {
		if i := slices.Index(v.selection, id); i >= 0 {
			v.selection = slices.Delete(v.selection, i, i+1)
		} else {
			v.selection = append(v.selection, id)
		}
	} else {
		v.selection = []string{id}
	}
	v.selectedGroup = ""

	drag := &NodeDrag{NodeID: id, StartX: n.X, StartY: n.Y, PointerStart: p}
	b := v.bounds(n)
	drag.Width, drag.Height = b.Width, b.Height
	if g, ok := v.parentGroup(n); ok {
		drag.ParentGroupID = g.ID
		for _, m := range v.membersOf(g) {
			if m != id {
				drag.SiblingIDs = append(drag.SiblingIDs, m)
			}
		}
	}
	v.e.snapshot()
	v.interaction = drag
	return true
}

func (v *Viewer) beginGroupDrag(id string, p Point) bool {
	g := v.e.store.Group(id)
	if g == nil {
		return false
	}
	v.selectedGroup = id
	drag := &GroupDrag{GroupID: id, StartX: g.X, StartY: g.Y, PointerStart: p}
	for _, m := range v.membersOf(*g) {
		n := v.e.store.Node(m)
		drag.Children = append(drag.Children, ChildStart{ID: m, StartX: n.X, StartY: n.Y})
	}
	v.e.snapshot()
	v.interaction = drag
	return true
}

// PointerMove advances the current interaction. Without one it is a no-op.
func (v *Viewer) PointerMove(ev PointerEvent) bool {
	if !ev.valid() {
		return false
	}
	return v.e.mutate(func() bool {
		p := ev.point()
		scale := v.viewport.Scale

		switch it := v.interaction.(type) {
		case *NodeDrag:
			proposed := Rect{
				X:      it.StartX + (p.X-it.PointerStart.X)/scale,
				Y:      it.StartY + (p.Y-it.PointerStart.Y)/scale,
				Width:  it.Width,
				Height: it.Height,
			}
			x, y := Snap(proposed, v.otherBounds(it.NodeID), SnapThreshold/scale)
			return v.e.store.MoveNode(it.NodeID, x, y)

		case *GroupDrag:
			dx := (p.X - it.PointerStart.X) / scale
			dy := (p.Y - it.PointerStart.Y) / scale
			g := v.e.store.Group(it.GroupID)
			if g == nil {
				return false
			}
			g.X, g.Y = it.StartX+dx, it.StartY+dy
			for _, c := range it.Children {
				v.e.store.MoveNode(c.ID, c.StartX+dx, c.StartY+dy)
			}
			return true

		case *ResizeDrag:
			dx := (p.X - it.PointerStart.X) / scale
			dy := (p.Y - it.PointerStart.Y) / scale
			return v.e.store.ResizeNode(it.NodeID, max(MinNodeWidth, it.InitialWidth+dx), max(MinNodeHeight, it.InitialHeight+dy))

		case *MarqueeDrag:
			it.Current = p
			return true

		case *PanDrag:
			v.viewport.PanBy(p.X-it.Last.X, p.Y-it.Last.Y)
			it.Last = p
			return true

		case *ConnectionDrag:
			it.Pointer = p
			return true
		}
		return false
	})
}

// PointerUp finishes the current interaction.
func (v *Viewer) PointerUp(ev PointerEvent) bool {
	if !ev.valid() {
		ev.X, ev.Y = math.NaN(), math.NaN()
	}
	return v.e.mutate(func() bool {
		return v.pointerUp(ev)
	})
}

func (v *Viewer) pointerUp(ev PointerEvent) bool {
	it := v.interaction
	if it == nil {
		return false
	}
	v.interaction = nil

	switch it := it.(type) {
	case *NodeDrag:
		n := v.e.store.Node(it.NodeID)
		if n == nil {
			return true
		}
		r := ResolveCollisions(v.bounds(n), v.otherBounds(it.NodeID), CollisionPadding)
		v.e.store.MoveNode(it.NodeID, r.X, r.Y)

	case *MarqueeDrag:
		if ev.valid() {
			it.Current = ev.point()
		}
		v.finishMarquee(it.Rect())

	case *ConnectionDrag:
		if ev.valid() {
			v.finishConnection(it, ev)
		}
	}
	return true
}

// otherBounds returns the bounds of every node except id, in scene order.
func (v *Viewer) otherBounds(id string) []Rect {
	out := make([]Rect, 0, len(v.e.store.scene.Nodes))
	for i := range v.e.store.scene.Nodes {
		n := &v.e.store.scene.Nodes[i]
		if n.ID == id {
			continue
		}
		out = append(out, v.bounds(n))
	}
	return out
}

// finishMarquee selects every node whose centre lies strictly inside the
// world rect, and wraps those not already grouped in a new group.
func (v *Viewer) finishMarquee(screen Rect) {
	if screen.Width <= MarqueeMinWidth {
		return
	}
	world := v.viewport.ScreenRectToWorld(screen)

	var enclosed []string
	var free []Rect
	for i := range v.e.store.scene.Nodes {
		n := &v.e.store.scene.Nodes[i]
		b := v.bounds(n)
		cx, cy := b.Center()
		if cx > world.X && cx < world.Right() && cy > world.Y && cy < world.Bottom() {
			enclosed = append(enclosed, n.ID)
			if !v.inAnyGroup(n) {
				free = append(free, b)
			}
		}
	}
	if len(enclosed) == 0 {
		return
	}
	v.selection = enclosed
	if len(free) > 0 {
		v.e.snapshot()
		v.e.groupAround(DefaultGroupTitle, free)
	}
}

// finishConnection commits a wire dropped on a port, or opens the
// smart-connect menu when dropped on empty canvas.
func (v *Viewer) finishConnection(drag *ConnectionDrag, ev PointerEvent) {
	src := v.e.store.Node(drag.NodeID)
	if src == nil {
		return
	}
	t := v.resolveTarget(ev)
	switch t.Kind {
	case TargetPort:
		c, err := NormalizeConnection(drag.NodeID, drag.Port, t.ID, t.Port)
		if err != nil {
			return
		}
		if err := v.e.store.validateConnection(c); err != nil {
			return
		}
		v.e.snapshot()
		v.e.store.Connect(c.From, c.To)

	case TargetCanvas, TargetGroup:
		types := CompatibleFrom(src.Type, drag.Port)
		if len(types) == 0 {
			return
		}
		p := ev.point()
		v.menu = &SmartConnectMenu{
			SourceID: src.ID,
			Port:     drag.Port,
			Types:    slices.Clone(types),
			Screen:   p,
			World:    v.viewport.ScreenToWorld(p),
		}
	}
}

// CancelInteraction abandons the current interaction, leaving the scene as the
// last move left it.
func (v *Viewer) CancelInteraction() {
	v.e.mutate(func() bool {
		if v.interaction == nil {
			return false
		}
		v.interaction = nil
		return true
	})
}

// CloseMenu dismisses the smart-connect menu.
func (v *Viewer) CloseMenu() {
	v.e.mutate(func() bool {
		if v.menu == nil {
			return false
		}
		v.menu = nil
		return true
	})
}

func cloneInteraction(it Interaction) Interaction {
	switch it := it.(type) {
	case *NodeDrag:
		c := *it
		c.SiblingIDs = slices.Clone(it.SiblingIDs)
		return &c
	case *GroupDrag:
		c := *it
		c.Children = slices.Clone(it.Children)
		return &c
	case *ResizeDrag:
		c := *it
		return &c
	case *MarqueeDrag:
		c := *it
		return &c
	case *PanDrag:
		c := *it
		return &c
	case *ConnectionDrag:
		c := *it
		return &c
	}
	return nil
}
