package engine

import (
	"cmp"
	"math"
	"slices"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

const (
	// GroupMargin pads an auto-created group around its nodes.
	GroupMargin = 32.0

	// DefaultGroupTitle names groups created from a marquee selection.
	DefaultGroupTitle = "New Group"

	arrangeRowTolerance = 50.0
	arrangeNodeWidth    = DefaultNodeWidth
	arrangeSpacingX     = 60.0
	arrangeSpacingY     = 40.0
	arrangePadding      = 40.0
)

// GroupContains reports whether the centre of b lies inside the group, edges
// included. This is the only definition of group membership.
func GroupContains(g document.Group, b Rect) bool {
	cx, cy := b.Center()
	return GroupRect(g).Contains(cx, cy)
}

// ArrangeItem is one group member fed to Arrange.
type ArrangeItem struct {
	ID     string
	X, Y   float64
	Height float64
}

// Arrange lays items out in rows inside g. Rows are clustered on Y: an item
// within the tolerance of the previous item's Y joins its row. Columns use a
// fixed pitch. It returns the new top-left per item and the resized group.
func Arrange(g document.Group, items []ArrangeItem) (map[string]Point, document.Group) {
	if len(items) == 0 {
		return nil, g
	}

	sorted := slices.Clone(items)
	slices.SortStableFunc(sorted, func(a, b ArrangeItem) int {
		if math.Abs(a.Y-b.Y) > arrangeRowTolerance {
			return cmp.Compare(a.Y, b.Y)
		}
		return cmp.Compare(a.X, b.X)
	})

	var rows [][]ArrangeItem
	var row []ArrangeItem
	lastY := sorted[0].Y
	for _, it := range sorted {
		if math.Abs(it.Y-lastY) > arrangeRowTolerance && len(row) > 0 {
			rows = append(rows, row)
			row = nil
		}
		row = append(row, it)
		lastY = it.Y
	}
	rows = append(rows, row)

	positions := make(map[string]Point, len(items))
	y := g.Y + arrangePadding
	maxWidth := 0.0
	for _, r := range rows {
		x := g.X + arrangePadding
		rowHeight := 0.0
		for _, it := range r {
			rowHeight = max(rowHeight, it.Height)
			positions[it.ID] = Point{X: x, Y: y}
			x += arrangeNodeWidth + arrangeSpacingX
		}
		n := float64(len(r))
		maxWidth = max(maxWidth, n*arrangeNodeWidth+(n-1)*arrangeSpacingX)
		y += rowHeight + arrangeSpacingY
	}

	g.Width = maxWidth + arrangePadding*2
	g.Height = y - g.Y - arrangeSpacingY + arrangePadding
	return positions, g
}

// --- Membership as a viewer sees it (callers hold the engine lock) ---

// bounds are per viewer because a selected story studio is taller.

func (v *Viewer) bounds(n *document.Node) Rect {
	return NodeBounds(n, v.isSelected(n.ID))
}

// membersOf recomputes containment for every node.
func (v *Viewer) membersOf(g document.Group) []string {
	var ids []string
	for i := range v.e.store.scene.Nodes {
		n := &v.e.store.scene.Nodes[i]
		if GroupContains(g, v.bounds(n)) {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// parentGroup returns the first group containing the node, if any.
func (v *Viewer) parentGroup(n *document.Node) (document.Group, bool) {
	b := v.bounds(n)
	for _, g := range v.e.store.scene.Groups {
		if GroupContains(g, b) {
			return g, true
		}
	}
	return document.Group{}, false
}

func (v *Viewer) inAnyGroup(n *document.Node) bool {
	_, ok := v.parentGroup(n)
	return ok
}

// MembersOf returns the ids of the nodes currently inside the group.
func (v *Viewer) MembersOf(groupID string) ([]string, error) {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	g := v.e.store.Group(groupID)
	if g == nil {
		return nil, ErrGroupNotFound
	}
	return v.membersOf(*g), nil
}

// ParentGroup returns the id of the group that currently contains the node.
func (v *Viewer) ParentGroup(nodeID string) (string, bool) {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	n := v.e.store.Node(nodeID)
	if n == nil {
		return "", false
	}
	g, ok := v.parentGroup(n)
	return g.ID, ok
}

// CreateGroup wraps the given nodes in a new group with the default margin.
func (v *Viewer) CreateGroup(title string, nodeIDs []string) (string, error) {
	var id string
	var err error
	v.e.mutate(func() bool {
		var rects []Rect
		for _, nid := range nodeIDs {
			if n := v.e.store.Node(nid); n != nil {
				rects = append(rects, v.bounds(n))
			}
		}
		if len(rects) == 0 {
			err = ErrNodeNotFound
			return false
		}
		v.e.snapshot()
		id = v.e.groupAround(title, rects)
		return true
	})
	return id, err
}

// groupAround appends a group enclosing rects plus GroupMargin.
func (e *Engine) groupAround(title string, rects []Rect) string {
	u := rects[0]
	for _, r := range rects[1:] {
		u = u.Union(r)
	}
	u = u.Inset(GroupMargin)
	if title == "" {
		title = DefaultGroupTitle
	}
	g := document.Group{ID: e.ids.Group(), Title: title, X: u.X, Y: u.Y, Width: u.Width, Height: u.Height}
	e.store.AddGroup(g)
	return g.ID
}

// ArrangeGroup re-lays the group's current members into a tidy grid and fits
// the group around them. Empty groups are left alone.
func (v *Viewer) ArrangeGroup(groupID string) error {
	var err error
	v.e.mutate(func() bool {
		g := v.e.store.Group(groupID)
		if g == nil {
			err = ErrGroupNotFound
			return false
		}
		members := v.membersOf(*g)
		if len(members) == 0 {
			return false
		}
		items := make([]ArrangeItem, 0, len(members))
		for _, id := range members {
			n := v.e.store.Node(id)
			items = append(items, ArrangeItem{ID: id, X: n.X, Y: n.Y, Height: NodeHeight(n, v.isSelected(id))})
		}

		v.e.snapshot()
		positions, resized := Arrange(*g, items)
		for id, p := range positions {
			v.e.store.MoveNode(id, p.X, p.Y)
		}
		*g = resized
		return true
	})
	return err
}

// DeleteGroup removes the group together with every node inside it.
func (v *Viewer) DeleteGroup(groupID string) error {
	var err error
	v.e.mutate(func() bool {
		g := v.e.store.Group(groupID)
		if g == nil {
			err = ErrGroupNotFound
			return false
		}
		members := v.membersOf(*g)
		v.e.snapshot()
		v.e.store.DeleteGroup(groupID)
		v.e.deleteNodes(members)
		return true
	})
	return err
}

// RenameGroup sets a group's title.
func (e *Engine) RenameGroup(groupID, title string) error {
	var err error
	e.mutate(func() bool {
		g := e.store.Group(groupID)
		if g == nil {
			err = ErrGroupNotFound
			return false
		}
		g.Title = title
		return true
	})
	return err
}

// SelectGroup marks a group as the keyboard target for delete.
func (v *Viewer) SelectGroup(groupID string) {
	v.e.mutate(func() bool {
		if groupID != "" && v.e.store.Group(groupID) == nil {
			return false
		}
		v.selectedGroup = groupID
		return true
	})
}
