package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

func TestArrange(t *testing.T) {
	g := document.Group{ID: "g", X: 0, Y: 0, Width: 10, Height: 10}
	items := []ArrangeItem{
		{ID: "a", X: 500, Y: 100, Height: 300},
		{ID: "b", X: 100, Y: 120, Height: 300},
		{ID: "c", X: 300, Y: 600, Height: 300},
	}
	pos, resized := Arrange(g, items)

	assert.Equal(t, Point{X: 40, Y: 40}, pos["b"])
	assert.Equal(t, Point{X: 520, Y: 40}, pos["a"])
	assert.Equal(t, Point{X: 40, Y: 380}, pos["c"])
	assert.Equal(t, 980.0, resized.Width)
	assert.Equal(t, 720.0, resized.Height)
	assert.Equal(t, "g", resized.ID)

	none, same := Arrange(g, nil)
	assert.Nil(t, none)
	assert.Equal(t, g, same)
}

func TestGroupMembershipIsComputed(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodeImageGenerator, 100, 100),
		node("b", document.NodeImageGenerator, 2000, 0),
	}, nil, []document.Group{{ID: "g", Title: "G", X: 0, Y: 0, Width: 1000, Height: 1000}})

	members, err := e.MembersOf("g")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, members)
	pg, ok := e.ParentGroup("a")
	assert.True(t, ok)
	assert.Equal(t, "g", pg)

	require.NoError(t, e.MoveNode("a", 3000, 3000))
	members, _ = e.MembersOf("g")
	assert.Empty(t, members)
	_, ok = e.ParentGroup("a")
	assert.False(t, ok)
	assert.Equal(t, document.Group{ID: "g", Title: "G", X: 0, Y: 0, Width: 1000, Height: 1000}, e.Scene().Groups[0])

	require.NoError(t, e.MoveNode("b", 500, 500))
	members, _ = e.MembersOf("g")
	assert.Equal(t, []string{"b"}, members)

	_, err = e.MembersOf("missing")
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestGroupContainsEdges(t *testing.T) {
	g := document.Group{X: 0, Y: 0, Width: 100, Height: 100}
	assert.True(t, GroupContains(g, Rect{X: 50, Y: 50, Width: 100, Height: 100}), "centre on the corner counts")
	assert.False(t, GroupContains(g, Rect{X: 51, Y: 0, Width: 100, Height: 10}))
}

func TestMarqueeCreatesGroup(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		sized(node("a", document.NodeImageGenerator, 0, 0), 420, 300),
		sized(node("b", document.NodeImageGenerator, 100, 0), 420, 300),
		sized(node("c", document.NodeImageGenerator, 0, 100), 420, 300),
	}, nil, nil)

	e.PointerDown(down(-50, -50))
	require.IsType(t, &MarqueeDrag{}, e.Interaction())
	e.PointerMove(down(300, 300))
	st := e.Snapshot()
	require.NotNil(t, st.Overlay)
	assert.Equal(t, &Rect{X: -50, Y: -50, Width: 350, Height: 350}, st.Overlay.Marquee)
	e.PointerUp(down(600, 500))

	sc := e.Scene()
	require.Len(t, sc.Groups, 1)
	g := sc.Groups[0]
	assert.Equal(t, DefaultGroupTitle, g.Title)
	assert.Equal(t, Rect{X: -32, Y: -32, Width: 584, Height: 464}, GroupRect(g))
	assert.ElementsMatch(t, []string{"a", "b", "c"}, e.Selection())

	// a second marquee over already grouped nodes only selects them
	e.PointerDown(down(-50, -50))
	assert.Empty(t, e.Selection(), "canvas press clears the selection")
	e.PointerUp(down(600, 500))
	assert.Len(t, e.Scene().Groups, 1)
	assert.Len(t, e.Selection(), 3)

	require.True(t, e.Undo())
	assert.Empty(t, e.Scene().Groups)
}

func TestMarqueeEnclosureIsStrict(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		sized(node("a", document.NodeImageGenerator, 0, 0), 400, 400),
	}, nil, nil)

	// centre (200, 200) lies on the marquee's right edge
	e.PointerDown(down(-100, -100))
	e.PointerUp(down(200, 500))
	assert.Empty(t, e.Scene().Groups)
	assert.Empty(t, e.Selection())
}

func TestTinyMarqueeIsIgnored(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		sized(node("a", document.NodeImageGenerator, 0, 0), 4, 4),
	}, nil, nil)

	e.PointerDown(down(-3, -500))
	e.PointerUp(down(7, 500))
	assert.Empty(t, e.Scene().Groups)
	assert.Equal(t, 0, e.HistoryLen())
}

func TestGroupDragMovesMembersRigidly(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodeImageGenerator, 100, 100),
		node("b", document.NodeImageGenerator, 2000, 0),
	}, nil, []document.Group{{ID: "g", X: 0, Y: 0, Width: 1000, Height: 1000}})

	e.PointerDown(down(900, 900))
	require.IsType(t, &GroupDrag{}, e.Interaction())
	assert.Equal(t, "g", e.SelectedGroup())
	e.PointerMove(down(1000, 950))
	e.PointerUp(down(1000, 950))

	sc := e.Scene()
	assert.Equal(t, 100.0, sc.Groups[0].X)
	assert.Equal(t, 50.0, sc.Groups[0].Y)
	a := mustNode(t, e, "a")
	assert.Equal(t, 200.0, a.X)
	assert.Equal(t, 150.0, a.Y)
	assert.Equal(t, 2000.0, mustNode(t, e, "b").X)

	require.True(t, e.Undo())
	assert.Equal(t, 100.0, mustNode(t, e, "a").X)
	assert.Equal(t, 0.0, e.Scene().Groups[0].X)
}

func TestNodeDragCapturesParentGroup(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodeImageGenerator, 100, 100),
		node("b", document.NodeImageGenerator, 100, 500),
	}, nil, []document.Group{{ID: "g", X: 0, Y: 0, Width: 1000, Height: 1000}})

	e.PointerDown(down(300, 200))
	drag, ok := e.Interaction().(*NodeDrag)
	require.True(t, ok)
	assert.Equal(t, "g", drag.ParentGroupID)
	assert.Equal(t, []string{"b"}, drag.SiblingIDs)
	assert.Equal(t, []string{"a"}, e.Selection())

	e.PointerMove(down(3300, 3200))
	e.PointerUp(down(3300, 3200))
	_, inGroup := e.ParentGroup("a")
	assert.False(t, inGroup, "dragging a node out of the group removes it")
}

func TestShiftClickTogglesSelection(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodeImageGenerator, 0, 0),
		node("b", document.NodeImageGenerator, 1000, 0),
	}, nil, nil)

	e.PointerDown(down(200, 100))
	e.PointerUp(down(200, 100))
	ev := down(1200, 100)
	ev.Shift = true
	e.PointerDown(ev)
	e.PointerUp(ev)
	assert.Equal(t, []string{"a", "b"}, e.Selection())

	e.PointerDown(ev)
	e.PointerUp(ev)
	assert.Equal(t, []string{"a"}, e.Selection())
}

func TestResizeDragClamps(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{node("a", document.NodeImageGenerator, 0, 0)}, nil, nil)

	e.PointerDown(down(410, 230))
	require.IsType(t, &ResizeDrag{}, e.Interaction())

	e.PointerMove(down(310, 130))
	a := mustNode(t, e, "a")
	assert.Equal(t, MinNodeWidth, float64(*a.Width))
	assert.Equal(t, MinNodeHeight, float64(*a.Height))

	e.PointerMove(down(610, 530))
	e.PointerUp(down(610, 530))
	a = mustNode(t, e, "a")
	assert.Equal(t, 620.0, float64(*a.Width))
	assert.Equal(t, 536.25, float64(*a.Height))

	require.True(t, e.Undo())
	assert.Nil(t, mustNode(t, e, "a").Width)
}

func TestPanDrag(t *testing.T) {
	e := newTestEngine(t)

	e.PointerDown(PointerEvent{X: 100, Y: 100, Button: ButtonMiddle})
	e.PointerMove(PointerEvent{X: 150, Y: 130, Button: ButtonMiddle})
	e.PointerUp(PointerEvent{X: 150, Y: 130, Button: ButtonMiddle})
	assert.Equal(t, Point{X: 50, Y: 30}, e.Viewport().Pan)

	ev := down(0, 0)
	ev.Shift = true
	e.PointerDown(ev)
	require.IsType(t, &PanDrag{}, e.Interaction())
	e.PointerMove(down(-20, 10))
	e.PointerUp(down(-20, 10))
	assert.Equal(t, Point{X: 30, Y: 40}, e.Viewport().Pan)
	assert.Equal(t, 0, e.HistoryLen(), "panning is not undoable")
}

func TestMoveWithoutInteractionIsNoop(t *testing.T) {
	e := newTestEngine(t)
	v := e.Version()
	assert.False(t, e.PointerMove(down(10, 10)))
	assert.False(t, e.PointerUp(down(10, 10)))
	assert.Equal(t, v, e.Version())
}

func TestCreateArrangeDeleteGroup(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		sized(node("a", document.NodeImageGenerator, 500, 100), 420, 300),
		sized(node("b", document.NodeImageGenerator, 100, 120), 420, 300),
		node("outside", document.NodeImageGenerator, 5000, 5000),
	}, nil, nil)

	id, err := e.CreateGroup("", []string{"a", "b", "missing"})
	require.NoError(t, err)
	g := e.Scene().Groups[0]
	assert.Equal(t, id, g.ID)
	assert.Equal(t, DefaultGroupTitle, g.Title)
	assert.Equal(t, Rect{X: 68, Y: 68, Width: 884, Height: 384}, GroupRect(g))

	require.NoError(t, e.ArrangeGroup(id))
	b := mustNode(t, e, "b")
	assert.Equal(t, 108.0, b.X)
	assert.Equal(t, 108.0, b.Y)
	assert.Equal(t, 588.0, mustNode(t, e, "a").X)
	g = e.Scene().Groups[0]
	assert.Equal(t, 980.0, g.Width)
	assert.Equal(t, 380.0, g.Height)

	require.NoError(t, e.RenameGroup(id, "Shots"))
	assert.Equal(t, "Shots", e.Scene().Groups[0].Title)

	require.NoError(t, e.DeleteGroup(id))
	sc := e.Scene()
	assert.Empty(t, sc.Groups)
	require.Len(t, sc.Nodes, 1)
	assert.Equal(t, "outside", sc.Nodes[0].ID)

	_, err = e.CreateGroup("x", []string{"nope"})
	assert.ErrorIs(t, err, ErrNodeNotFound)
	assert.ErrorIs(t, e.ArrangeGroup("nope"), ErrGroupNotFound)
}
