package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

func TestNodeHeight(t *testing.T) {
	tests := []struct {
		name     string
		node     document.Node
		selected bool
		want     float64
	}{
		{"prompt fixed", node("n", document.NodePromptInput, 0, 0), false, 360},
		{"analyzer fixed", node("n", document.NodeVideoAnalyzer, 0, 0), false, 360},
		{"audio fixed", node("n", document.NodeAudioGenerator, 0, 0), false, 200},
		{"studio collapsed", node("n", document.NodeStoryStudio, 0, 0), false, 120},
		{"studio expanded when selected", node("n", document.NodeStoryStudio, 0, 0), true, 500},
		{"character reference", node("n", document.NodeCharacterReference, 0, 0), false, 400},
		{"storyboard shot", node("n", document.NodeStoryboardShot, 0, 0), false, 450},
		{"multi angle camera", node("n", document.NodeMultiAngleCamera, 0, 0), false, 800},
		{"grid splitter", node("n", document.NodeGridSplitter, 0, 0), false, 480},
		{"image default 16:9", node("n", document.NodeImageGenerator, 0, 0), false, 420 * 9.0 / 16},
		{"explicit height wins", sized(node("n", document.NodeAudioGenerator, 0, 0), 500, 777), false, 777},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, NodeHeight(&tt.node, tt.selected), 1e-9)
		})
	}
}

func TestNodeHeightAspectRatio(t *testing.T) {
	n := node("n", document.NodeImageGenerator, 0, 0)
	n.Data.AspectRatio = "1:1"
	assert.Equal(t, 420.0, NodeHeight(&n, false))

	n.Width = document.Float(600)
	n.Data.AspectRatio = "4:3"
	assert.Equal(t, 450.0, NodeHeight(&n, false))

	n.Data.AspectRatio = "garbage"
	assert.InDelta(t, 600*9.0/16, NodeHeight(&n, false), 1e-9)

	v := node("v", document.NodeVideoGenerator, 0, 0)
	v.Data.GenerationMode = document.VideoModeCut
	assert.InDelta(t, 420*9.0/16+36, NodeHeight(&v, false), 1e-9)
}

func TestParseAspectRatio(t *testing.T) {
	tests := []struct {
		in   string
		w, h float64
	}{
		{"", 16, 9},
		{"9:16", 9, 16},
		{" 21 : 9 ", 21, 9},
		{"0:1", 16, 9},
		{"-4:3", 16, 9},
		{"4x3", 16, 9},
		{"NaN:1", 16, 9},
	}
	for _, tt := range tests {
		w, h := ParseAspectRatio(tt.in)
		assert.Equal(t, tt.w, w, tt.in)
		assert.Equal(t, tt.h, h, tt.in)
	}
}

func TestRect(t *testing.T) {
	a := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	b := Rect{X: 10, Y: 0, Width: 10, Height: 10}

	assert.False(t, a.Overlaps(b), "touching edges do not overlap")
	assert.True(t, a.Overlaps(Rect{X: 9, Y: 9, Width: 5, Height: 5}))
	assert.True(t, a.Contains(10, 10))
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 20, Height: 10}, a.Union(b))
	assert.Equal(t, Rect{X: -2, Y: -2, Width: 14, Height: 14}, a.Inset(2))
	assert.Equal(t, b, Rect{}.Union(b))
}
