package engine

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

func TestHitTestPriority(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{
		node("a", document.NodeImageGenerator, 0, 0),
		node("top", document.NodeImageGenerator, 200, 150),
	}, nil, []document.Group{{ID: "g", X: -200, Y: -200, Width: 2000, Height: 1000}})

	tests := []struct {
		name string
		at   Point
		want Target
	}{
		{"input port", Point{X: 2, Y: 120}, Target{Kind: TargetPort, ID: "a", Port: PortInput}},
		{"output port", Point{X: 425, Y: 110}, Target{Kind: TargetPort, ID: "a", Port: PortOutput}},
		{"resize handle", Point{X: 615, Y: 380}, Target{Kind: TargetResize, ID: "top"}},
		{"topmost body", Point{X: 300, Y: 200}, Target{Kind: TargetNode, ID: "top"}},
		{"lower body", Point{X: 100, Y: 50}, Target{Kind: TargetNode, ID: "a"}},
		{"group", Point{X: 1500, Y: 700}, Target{Kind: TargetGroup, ID: "g"}},
		{"canvas", Point{X: 5000, Y: 5000}, Target{Kind: TargetCanvas}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, e.HitTest(tt.at))
		})
	}
}

func TestHitRadiusIsScreenSpace(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{node("a", document.NodeImageGenerator, 0, 0)}, nil, nil)
	e.ZoomAt(Point{}, 0.5)

	// input port at world (0, 118.125) is screen (0, 59.0625)
	assert.Equal(t, TargetPort, e.HitTest(Point{X: -10, Y: 59}).Kind)
	assert.Equal(t, TargetCanvas, e.HitTest(Point{X: -13, Y: 59}).Kind)
}

func TestExplicitTargetOverridesHitTest(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{node("a", document.NodeImageGenerator, 0, 0)}, nil, nil)

	e.PointerDown(PointerEvent{X: 5000, Y: 5000, Target: &Target{Kind: TargetNode, ID: "a"}})
	assert.IsType(t, &NodeDrag{}, e.Interaction())
	e.PointerUp(down(5000, 5000))
}

func TestDrawCommandsOrder(t *testing.T) {
	e := newTestEngine(t)
	b := node("b", document.NodeImageGenerator, 1000, 0)
	b.Data.Image = "b.png"
	loadScene(t, e, []document.Node{node("a", document.NodePromptInput, 0, 0), b},
		[]document.Connection{{From: "a", To: "b"}},
		[]document.Group{{ID: "g", Title: "Set", X: -40, Y: -40, Width: 1500, Height: 500}})

	cmds := e.DrawCommands()
	require.NotEmpty(t, cmds)
	assert.Equal(t, "g", cmds[0].ObjectID)
	assert.Equal(t, "a>b", cmds[2].ObjectID, "wires draw after groups")

	var images []string
	for _, c := range cmds {
		if c.Op == "image" {
			images = append(images, c.ImageSrc)
		}
	}
	assert.Equal(t, []string{"b.png"}, images)

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal([]byte(e.DrawCommandsJSON()), &decoded))
	assert.Len(t, decoded, len(cmds))
}

func TestStateJSON(t *testing.T) {
	e := newTestEngine(t)
	loadScene(t, e, []document.Node{node("a", document.NodePromptInput, 0, 0)}, nil, nil)
	e.PointerDown(down(3000, 3000))

	var st struct {
		Version   uint64   `json:"version"`
		Selection []string `json:"selection"`
		Overlay   struct {
			Mode string `json:"mode"`
		} `json:"overlay"`
		CanUndo bool `json:"canUndo"`
	}
	require.NoError(t, json.Unmarshal([]byte(e.StateJSON()), &st))
	assert.Equal(t, e.Version(), st.Version)
	assert.Equal(t, "marquee", st.Overlay.Mode)
	assert.Empty(t, st.Selection)
	assert.False(t, st.CanUndo)
}
