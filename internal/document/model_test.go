package document

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNodeDataKeepsUnknownKeys(t *testing.T) {
	in := `{"prompt":"fox","shotNotes":{"1":"wide"},"legacyFlag":true}`
	var d NodeData
	require.NoError(t, json.Unmarshal([]byte(in), &d))
	assert.Equal(t, "fox", d.Prompt)
	assert.Len(t, d.Extra, 2)

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestNodeDataModelledFieldsWinOverExtra(t *testing.T) {
	d := NodeData{Prompt: "typed", Extra: map[string]json.RawMessage{"prompt": json.RawMessage(`"stale"`)}}
	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `{"prompt":"typed"}`, string(out))
}

func TestNodeDataCloneIsDeep(t *testing.T) {
	idx := 2
	d := NodeData{
		CharacterRefs:    map[string]string{"mara": "a.png"},
		StoryData:        json.RawMessage(`{"title":"Tides"}`),
		CurrentShotIndex: &idx,
		Extra:            map[string]json.RawMessage{"k": json.RawMessage(`1`)},
	}
	c := d.Clone()
	c.CharacterRefs["mara"] = "b.png"
	*c.CurrentShotIndex = 5
	c.Extra["k"] = json.RawMessage(`2`)

	assert.Equal(t, "a.png", d.CharacterRefs["mara"])
	assert.Equal(t, 2, *d.CurrentShotIndex)
	assert.Equal(t, json.RawMessage(`1`), d.Extra["k"])
}

func TestApplyPatch(t *testing.T) {
	d := NodeData{Prompt: "fox", HorizontalAngle: 45, CameraZoom: 7, Extra: map[string]json.RawMessage{"note": json.RawMessage(`"x"`)}}

	got, err := d.Apply(DataPatch{
		"prompt":          json.RawMessage(`""`),
		"horizontalAngle": json.RawMessage(`0`),
		"note":            json.RawMessage(`null`),
		"sceneRefs":       json.RawMessage(`{"sc1":"s.png"}`),
	})
	require.NoError(t, err)
	assert.Empty(t, got.Prompt)
	assert.Equal(t, 0.0, got.HorizontalAngle)
	assert.Equal(t, 7.0, got.CameraZoom)
	assert.Empty(t, got.Extra)
	assert.Equal(t, map[string]string{"sc1": "s.png"}, got.SceneRefs)

	assert.Equal(t, "fox", d.Prompt, "the receiver is untouched")
	assert.Contains(t, d.Extra, "note")
}

func TestApplyRejectsMistypedValue(t *testing.T) {
	d := NodeData{ImageCount: 2}
	got, err := d.Apply(DataPatch{"imageCount": json.RawMessage(`"many"`)})
	require.ErrorIs(t, err, ErrInvalidPatch)
	assert.Equal(t, 2, got.ImageCount)
}

func TestPatchOf(t *testing.T) {
	p := PatchOf(NodeData{CameraPrompt: "side view"})
	assert.Equal(t, DataPatch{"cameraPrompt": json.RawMessage(`"side view"`)}, p)
	assert.True(t, p.Has("cameraPrompt"))
	assert.False(t, p.Has("prompt"))
	assert.False(t, DataPatch{"prompt": json.RawMessage(`null`)}.Has("prompt"))
}

func TestMergeDataOverlaysStoryFields(t *testing.T) {
	base := NodeStoryStudio.DefaultData()
	got := MergeData(base, NodeData{SystemPrompt: "be brief", CharacterRefs: map[string]string{"mara": "m.png"}})
	assert.Equal(t, "be brief", got.SystemPrompt)
	assert.Equal(t, "m.png", got.CharacterRefs["mara"])
	assert.Equal(t, 6, got.ShotCount)
}
