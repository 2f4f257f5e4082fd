package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

type seqIDs struct{ n int }

func (s *seqIDs) next(prefix string) string {
	s.n++
	return fmt.Sprintf("%s_%d", prefix, s.n)
}

func (s *seqIDs) Node() string     { return s.next("node") }
func (s *seqIDs) Group() string    { return s.next("group") }
func (s *seqIDs) Workflow() string { return s.next("wf") }
func (s *seqIDs) Asset() string    { return s.next("asset") }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(Options{IDs: &seqIDs{}})
}

func node(id string, typ document.NodeType, x, y float64) document.Node {
	return document.Node{ID: id, Type: typ, X: x, Y: y, Title: typ.Title(), Status: document.StatusIdle, Inputs: []string{}}
}

func sized(n document.Node, w, h float64) document.Node {
	n.Width = document.Float(w)
	n.Height = document.Float(h)
	return n
}

func loadScene(t *testing.T, e *Engine, nodes []document.Node, conns []document.Connection, groups []document.Group) {
	t.Helper()
	sc := document.NewScene()
	sc.Nodes = append(sc.Nodes, nodes...)
	sc.Connections = append(sc.Connections, conns...)
	sc.Groups = append(sc.Groups, groups...)
	e.Load(document.Workspace{Scene: sc})
}

func mustNode(t *testing.T, e *Engine, id string) document.Node {
	t.Helper()
	n, ok := e.Node(id)
	require.True(t, ok, "node %s", id)
	return n
}

func nan() float64 { return math.NaN() }

func down(x, y float64) PointerEvent { return PointerEvent{X: x, Y: y, Button: ButtonLeft} }

func TestAddAndConnectScenario(t *testing.T) {
	e := newTestEngine(t)

	a, err := e.AddNode(document.NodePromptInput, &Point{X: 0, Y: 0}, document.NodeData{})
	require.NoError(t, err)
	b, err := e.AddNode(document.NodeImageGenerator, &Point{X: 1000, Y: 0}, document.NodeData{})
	require.NoError(t, err)

	ab, _ := e.Bounds(a)
	bb, _ := e.Bounds(b)
	out := PortPosition(ab, PortOutput)
	in := PortPosition(bb, PortInput)

	require.True(t, e.PointerDown(down(out.X, out.Y)))
	require.IsType(t, &ConnectionDrag{}, e.Interaction())
	e.PointerMove(down(700, 300))
	e.PointerUp(down(in.X, in.Y))

	assert.Nil(t, e.Interaction())
	assert.Equal(t, []document.Connection{{From: a, To: b}}, e.Scene().Connections)
	assert.Equal(t, []string{a}, mustNode(t, e, b).Inputs)
}

func TestConnectionDirection(t *testing.T) {
	tests := []struct {
		name      string
		fromPort  PortKind
		toPort    PortKind
		wantConns []document.Connection
	}{
		{"output to input", PortOutput, PortInput, []document.Connection{{From: "a", To: "b"}}},
		{"input to output normalises", PortInput, PortOutput, []document.Connection{{From: "b", To: "a"}}},
		{"output to output rejected", PortOutput, PortOutput, []document.Connection{}},
		{"input to input rejected", PortInput, PortInput, []document.Connection{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			loadScene(t, e, []document.Node{
				node("a", document.NodeImageGenerator, 0, 0),
				node("b", document.NodeImageGenerator, 1000, 0),
			}, nil, nil)

			e.PointerDown(PointerEvent{X: 1, Y: 1, Target: &Target{Kind: TargetPort, ID: "a", Port: tt.fromPort}})
			e.PointerUp(PointerEvent{X: 2, Y: 2, Target: &Target{Kind: TargetPort, ID: "b", Port: tt.toPort}})

			sc := e.Scene()
			assert.Equal(t, tt.wantConns, sc.Connections)
			assert.Nil(t, e.Menu(), "a port drop never opens the menu")
		})
	}
}

func TestConnectRejectsSelfAndDuplicates(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodePromptInput, 0, 0),
		node("b", document.NodeImageGenerator, 1000, 0),
	}, nil, nil)

	_, err := e.Connect("a", PortOutput, "a", PortInput)
	assert.ErrorIs(t, err, ErrInvalidConnection)

	c, err := e.Connect("b", PortInput, "a", PortOutput)
	require.NoError(t, err)
	assert.Equal(t, document.Connection{From: "a", To: "b"}, c)

	_, err = e.Connect("a", PortOutput, "b", PortInput)
	assert.ErrorIs(t, err, ErrDuplicateConnection)
	assert.Len(t, e.Scene().Connections, 1)

	_, err = e.Connect("a", PortOutput, "missing", PortInput)
	assert.ErrorIs(t, err, ErrNodeNotFound)
}

func TestTypeTablesNeverBlock(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("audio", document.NodeAudioGenerator, 0, 0),
		node("split", document.NodeGridSplitter, 1000, 0),
	}, nil, nil)

	assert.Empty(t, CompatibleDownstream(document.NodeAudioGenerator))
	_, err := e.Connect("audio", PortOutput, "split", PortInput)
	require.NoError(t, err)
	assert.Equal(t, []string{"audio"}, mustNode(t, e, "split").Inputs)
}

func TestDisconnect(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodePromptInput, 0, 0),
		node("b", document.NodeImageGenerator, 1000, 0),
	}, nil, nil)
	_, err := e.Connect("a", PortOutput, "b", PortInput)
	require.NoError(t, err)

	require.NoError(t, e.Disconnect("a", "b"))
	assert.Empty(t, e.Scene().Connections)
	assert.Empty(t, mustNode(t, e, "b").Inputs)
	assert.ErrorIs(t, e.Disconnect("a", "b"), ErrInvalidConnection)
}

func TestReorderInputs(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodeImageGenerator, 0, 0),
		node("b", document.NodeImageGenerator, 0, 500),
		node("v", document.NodeVideoGenerator, 1000, 0),
	}, nil, nil)
	_, err := e.Connect("a", PortOutput, "v", PortInput)
	require.NoError(t, err)
	_, err = e.Connect("b", PortOutput, "v", PortInput)
	require.NoError(t, err)

	require.NoError(t, e.ReorderInputs("v", []string{"b", "a"}))
	v := mustNode(t, e, "v")
	assert.Equal(t, []string{"b", "a"}, v.Inputs)
	assert.Equal(t, []string{"b", "a"}, v.Data.SortedInputIDs)

	assert.ErrorIs(t, e.ReorderInputs("v", []string{"a"}), ErrInvalidInputOrdering)
	assert.ErrorIs(t, e.ReorderInputs("v", []string{"a", "a"}), ErrInvalidInputOrdering)
	assert.ErrorIs(t, e.ReorderInputs("v", []string{"a", "x"}), ErrInvalidInputOrdering)
}

func TestSmartConnectMenu(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("p", document.NodePromptInput, 0, 0),
		node("s", document.NodeGridSplitter, 0, 1000),
	}, nil, nil)

	e.PointerDown(PointerEvent{Target: &Target{Kind: TargetPort, ID: "p", Port: PortOutput}})
	e.PointerUp(down(3000, 3000))

	m := e.Menu()
	require.NotNil(t, m)
	assert.Equal(t, "p", m.SourceID)
	assert.Equal(t, PortOutput, m.Port)
	assert.Equal(t, CompatibleDownstream(document.NodePromptInput), m.Types)
	assert.Equal(t, Point{X: 3000, Y: 3000}, m.World)

	id, err := e.ChooseMenuType(document.NodeVideoGenerator)
	require.NoError(t, err)
	n := mustNode(t, e, id)
	assert.Equal(t, document.NodeVideoGenerator, n.Type)
	assert.Equal(t, 3000.0, n.X)
	assert.Equal(t, []string{"p"}, n.Inputs)
	assert.Contains(t, e.Scene().Connections, document.Connection{From: "p", To: id})
	assert.Nil(t, e.Menu())

	// nothing compatible downstream of a splitter: the drag is dropped
	e.PointerDown(PointerEvent{Target: &Target{Kind: TargetPort, ID: "s", Port: PortOutput}})
	e.PointerUp(down(5000, 5000))
	assert.Nil(t, e.Menu())
}

func TestSmartConnectFromInputPort(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{node("v", document.NodeVideoGenerator, 0, 0)}, nil, nil)

	id, err := e.SmartConnect("v", PortInput, document.NodePromptInput, Point{X: -600, Y: 0})
	require.NoError(t, err)
	assert.Equal(t, []string{id}, mustNode(t, e, "v").Inputs)
	assert.Equal(t, []document.Connection{{From: id, To: "v"}}, e.Scene().Connections)
}

func TestConnectionDropOnNodeBodyIsIgnored(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("p", document.NodePromptInput, 0, 0),
		node("i", document.NodeImageGenerator, 1000, 0),
	}, nil, nil)

	e.PointerDown(PointerEvent{Target: &Target{Kind: TargetPort, ID: "p", Port: PortOutput}})
	e.PointerUp(PointerEvent{X: 1200, Y: 100})

	assert.Nil(t, e.Menu())
	assert.Empty(t, e.Scene().Connections)
}

func TestDeleteCascades(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodePromptInput, 0, 0),
		node("b", document.NodeImageGenerator, 600, 0),
		node("c", document.NodeVideoGenerator, 1200, 0),
	}, nil, nil)
	for _, c := range [][2]string{{"a", "b"}, {"a", "c"}, {"b", "c"}} {
		_, err := e.Connect(c[0], PortOutput, c[1], PortInput)
		require.NoError(t, err)
	}
	e.SetSelection([]string{"a", "b"})

	assert.Equal(t, 1, e.DeleteNodes([]string{"a"}))

	sc := e.Scene()
	assert.Equal(t, []document.Connection{{From: "b", To: "c"}}, sc.Connections)
	for _, n := range sc.Nodes {
		assert.NotContains(t, n.Inputs, "a")
	}
	assert.Equal(t, []string{"b"}, e.Selection())
	assert.Zero(t, e.DeleteNodes([]string{"a"}))
}

func TestUndoRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(t *testing.T, e *Engine)
	}{
		{"move", func(t *testing.T, e *Engine) { require.NoError(t, e.MoveNode("b", 50, 60)) }},
		{"resize", func(t *testing.T, e *Engine) { require.NoError(t, e.ResizeNode("b", 800, 900)) }},
		{"delete", func(t *testing.T, e *Engine) { e.DeleteNodes([]string{"a"}) }},
		{"add", func(t *testing.T, e *Engine) {
			_, err := e.AddNode(document.NodeAudioGenerator, nil, document.NodeData{})
			require.NoError(t, err)
		}},
		{"drag", func(t *testing.T, e *Engine) {
			e.PointerDown(PointerEvent{X: 1100, Y: 100, Target: &Target{Kind: TargetNode, ID: "b"}})
			e.PointerMove(down(1500, 900))
			e.PointerUp(down(1500, 900))
		}},
		{"arrange", func(t *testing.T, e *Engine) { require.NoError(t, e.ArrangeGroup("g")) }},
		{"group delete", func(t *testing.T, e *Engine) { require.NoError(t, e.DeleteGroup("g")) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t)
			loadScene(t, e, []document.Node{
				node("a", document.NodePromptInput, 0, 0),
				node("b", document.NodeImageGenerator, 1000, 0),
			}, nil, []document.Group{{ID: "g", Title: "G", X: -100, Y: -100, Width: 2000, Height: 800}})
			_, err := e.Connect("a", PortOutput, "b", PortInput)
			require.NoError(t, err)

			before := e.Scene()
			tt.mutate(t, e)
			require.NotEqual(t, before, e.Scene())

			require.True(t, e.Undo())
			assert.Equal(t, before, e.Scene())

			// the mutation can be re-applied
			mutated := e.Scene()
			require.True(t, e.Redo())
			assert.NotEqual(t, mutated, e.Scene())
		})
	}
}

func TestUndoWithoutHistoryIsNoop(t *testing.T) {
	e := newTestEngine(t)
	e.LoadSample()
	before := e.Scene()
	assert.False(t, e.Undo())
	assert.False(t, e.Redo())
	assert.Equal(t, before, e.Scene())
}

func TestSnapshotsDoNotAliasLiveScene(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{node("a", document.NodePromptInput, 0, 0)}, nil, nil)
	require.NoError(t, e.MoveNode("a", 10, 10))
	require.NoError(t, e.UpdateNode("a", NodeUpdate{Data: document.PatchOf(document.NodeData{Prompt: "changed"})}))

	require.True(t, e.Undo())
	a := mustNode(t, e, "a")
	assert.Empty(t, a.Data.Prompt)
	assert.Equal(t, 0.0, a.X)
}

func TestUpdateNodeMergePatch(t *testing.T) {
	e := newTestEngine(t)
	cam := node("cam", document.NodeMultiAngleCamera, 0, 0)
	cam.Data = document.NodeData{Prompt: "hero shot", HorizontalAngle: 45, VerticalAngle: 30, CameraZoom: 7}
	loadScene(t, e, []document.Node{cam}, nil, nil)

	require.NoError(t, e.UpdateNode("cam", NodeUpdate{Data: document.DataPatch{
		"prompt":          json.RawMessage(`""`),
		"horizontalAngle": json.RawMessage(`0`),
	}}))
	n := mustNode(t, e, "cam")
	assert.Empty(t, n.Data.Prompt)
	assert.Equal(t, 0.0, n.Data.HorizontalAngle)
	assert.Equal(t, 30.0, n.Data.VerticalAngle, "absent keys are kept")
	assert.Equal(t, 7.0, n.Data.CameraZoom)

	require.NoError(t, e.UpdateNode("cam", NodeUpdate{Data: document.DataPatch{"cameraZoom": json.RawMessage(`null`)}}))
	assert.Equal(t, 0.0, mustNode(t, e, "cam").Data.CameraZoom)
}

func TestUpdateNodeRejectsMistypedPatch(t *testing.T) {
	e := newTestEngine(t)
	p := node("p", document.NodePromptInput, 0, 0)
	p.Data.Prompt = "keep me"
	loadScene(t, e, []document.Node{p}, nil, nil)
	v := e.Version()

	err := e.UpdateNode("p", NodeUpdate{Title: "renamed", Data: document.DataPatch{"prompt": json.RawMessage(`5`)}})
	require.ErrorIs(t, err, document.ErrInvalidPatch)
	n := mustNode(t, e, "p")
	assert.Equal(t, "keep me", n.Data.Prompt)
	assert.Equal(t, p.Title, n.Title)
	assert.Equal(t, v, e.Version())
}

func TestUpdateNodeRecordsOnlyPatchedMedia(t *testing.T) {
	e := newTestEngine(t)
	img := node("img", document.NodeImageGenerator, 0, 0)
	img.Data.Image = "old.png"
	loadScene(t, e, []document.Node{img}, nil, nil)

	require.NoError(t, e.UpdateNode("img", NodeUpdate{Data: document.DataPatch{"prompt": json.RawMessage(`"sunset"`)}}))
	assert.Empty(t, e.Assets())

	require.NoError(t, e.UpdateNode("img", NodeUpdate{Data: document.DataPatch{"image": json.RawMessage(`"new.png"`)}}))
	require.Len(t, e.Assets(), 1)
	assert.Equal(t, "new.png", e.Assets()[0].Src)
}

func TestAddNodeDefaults(t *testing.T) {
	e := newTestEngine(t)

	id, err := e.AddNode(document.NodeVideoGenerator, nil, document.NodeData{Prompt: "waves"})
	require.NoError(t, err)
	n := mustNode(t, e, id)
	assert.Equal(t, 1920.0/2-210, n.X)
	assert.Equal(t, 1080.0/2-180, n.Y)
	assert.Equal(t, DefaultNodeWidth, *n.Width)
	assert.Equal(t, document.VideoModeDefault, n.Data.GenerationMode)
	assert.Equal(t, "veo-3.1-fast-generate-preview", n.Data.Model)
	assert.Equal(t, "waves", n.Data.Prompt)
	assert.Equal(t, document.StatusIdle, n.Status)

	nan := Point{X: nan(), Y: nan()}
	id, err = e.AddNode(document.NodeStoryStudio, &nan, document.NodeData{})
	require.NoError(t, err)
	n = mustNode(t, e, id)
	assert.Equal(t, 100.0, n.X)
	assert.Equal(t, 100.0, n.Y)
	assert.Equal(t, 6, n.Data.ShotCount)

	_, err = e.AddNode("BOGUS", nil, document.NodeData{})
	assert.ErrorIs(t, err, ErrUnknownNodeType)
}

func TestCopyPaste(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodePromptInput, 0, 0),
		node("b", document.NodeImageGenerator, 1000, 0),
	}, nil, nil)
	_, err := e.Connect("a", PortOutput, "b", PortInput)
	require.NoError(t, err)
	require.NoError(t, e.UpdateNode("b", NodeUpdate{Status: document.StatusSuccess}))

	e.SetSelection([]string{"a", "b"})
	require.True(t, e.KeyDown("c", true, false))
	require.True(t, e.KeyDown("v", true, false))

	sel := e.Selection()
	require.Len(t, sel, 1)
	p := mustNode(t, e, sel[0])
	assert.NotEqual(t, "b", p.ID)
	assert.Equal(t, 1050.0, p.X)
	assert.Equal(t, 50.0, p.Y)
	assert.Equal(t, document.StatusIdle, p.Status)
	assert.Empty(t, p.Inputs)
}

func TestKeyboardShortcuts(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodePromptInput, 0, 0),
		node("b", document.NodeImageGenerator, 1000, 0),
	}, nil, nil)

	assert.True(t, e.KeyDown("A", true, false))
	assert.ElementsMatch(t, []string{"a", "b"}, e.Selection())

	assert.True(t, e.KeyDown("Delete", false, false))
	assert.Empty(t, e.Scene().Nodes)

	assert.True(t, e.KeyDown("z", true, false))
	assert.Len(t, e.Scene().Nodes, 2)

	assert.True(t, e.KeyDown("Z", true, true))
	assert.Empty(t, e.Scene().Nodes)

	assert.False(t, e.KeyDown("q", false, false))
}

func TestFitView(t *testing.T) {
	e := newTestEngine(t)
	e.ZoomAt(Point{X: 100, Y: 100}, 2)
	e.FitView()
	assert.Equal(t, NewViewport(), e.Viewport(), "empty scene resets to identity")

	loadScene(t, e, []document.Node{node("a", document.NodeImageGenerator, 0, 0)}, nil, nil)
	e.FitView()
	v := e.Viewport()
	assert.Equal(t, 1.0, v.Scale)
	assert.InDelta(t, 960-210, v.Pan.X, 1e-9)
	assert.InDelta(t, 540-236.25/2, v.Pan.Y, 1e-9)
}

func TestDropAssets(t *testing.T) {
	e := newTestEngine(t)
	ids := e.DropAssets(Point{X: 1000, Y: 1000}, []DroppedAsset{
		{Type: document.AssetImage, Src: "data:image/png;base64,AAA", Title: "one.png"},
		{Type: document.AssetAudio, Src: "data:audio/wav;base64,AAA"},
		{Type: document.AssetVideo, Src: "data:video/mp4;base64,AAA", Title: "two.mp4"},
		{Type: document.AssetImage, Src: "b"},
		{Type: document.AssetImage, Src: "c"},
	})
	require.Len(t, ids, 4)

	first := mustNode(t, e, ids[0])
	assert.Equal(t, document.NodeImageGenerator, first.Type)
	assert.Equal(t, Point{X: 790, Y: 820}, Point{X: first.X, Y: first.Y})
	assert.Equal(t, "one.png", first.Data.Prompt)

	second := mustNode(t, e, ids[1])
	assert.Equal(t, document.NodeVideoGenerator, second.Type)
	assert.Equal(t, 790.0+460, second.X)

	fourth := mustNode(t, e, ids[3])
	assert.Equal(t, 790.0, fourth.X)
	assert.Equal(t, 820.0+450, fourth.Y)
}

func TestOnChangeFiresOutsideLock(t *testing.T) {
	e := newTestEngine(t)
	calls := 0
	e.OnChange(func() {
		calls++
		_ = e.Snapshot()
	})
	_, err := e.AddNode(document.NodePromptInput, nil, document.NodeData{})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, uint64(1), e.Version())
}
