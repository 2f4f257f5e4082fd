package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
)

type NodeType string

const (
	NodePromptInput        NodeType = "PROMPT_INPUT"
	NodeImageGenerator     NodeType = "IMAGE_GENERATOR"
	NodeVideoGenerator     NodeType = "VIDEO_GENERATOR"
	NodeVideoAnalyzer      NodeType = "VIDEO_ANALYZER"
	NodeImageEditor        NodeType = "IMAGE_EDITOR"
	NodeAudioGenerator     NodeType = "AUDIO_GENERATOR"
	NodeStoryStudio        NodeType = "STORY_STUDIO"
	NodeCharacterReference NodeType = "CHARACTER_REFERENCE"
	NodeSceneReference     NodeType = "SCENE_REFERENCE"
	NodeStoryboardShot     NodeType = "STORYBOARD_SHOT"
	NodeMultiAngleCamera   NodeType = "MULTI_ANGLE_CAMERA"
	NodeGridSplitter       NodeType = "GRID_SPLITTER"
)

// NodeTypes lists every node type in palette order.
var NodeTypes = []NodeType{
	NodePromptInput,
	NodeImageGenerator,
	NodeVideoGenerator,
	NodeVideoAnalyzer,
	NodeImageEditor,
	NodeAudioGenerator,
	NodeStoryStudio,
	NodeCharacterReference,
	NodeSceneReference,
	NodeStoryboardShot,
	NodeMultiAngleCamera,
	NodeGridSplitter,
}

func (t NodeType) Valid() bool {
	return slices.Contains(NodeTypes, t)
}

type NodeStatus string

const (
	StatusIdle    NodeStatus = "IDLE"
	StatusWorking NodeStatus = "WORKING"
	StatusSuccess NodeStatus = "SUCCESS"
	StatusError   NodeStatus = "ERROR"
)

type VideoGenerationMode string

const (
	VideoModeDefault        VideoGenerationMode = "DEFAULT"
	VideoModeContinue       VideoGenerationMode = "CONTINUE"
	VideoModeCut            VideoGenerationMode = "CUT"
	VideoModeFirstLastFrame VideoGenerationMode = "FIRST_LAST_FRAME"
	VideoModeCharacterRef   VideoGenerationMode = "CHARACTER_REF"
)

// NodeData is the type-specific payload of a node. Which fields are meaningful
// depends on the node type; unused fields stay empty and are omitted from JSON.
type NodeData struct {
	Prompt        string          `json:"prompt,omitempty"`
	Model         string          `json:"model,omitempty"`
	Image         string          `json:"image,omitempty"`
	Images        []string        `json:"images,omitempty"`
	ImageCount    int             `json:"imageCount,omitempty"`
	VideoCount    int             `json:"videoCount,omitempty"`
	VideoURI      string          `json:"videoUri,omitempty"`
	VideoURIs     []string        `json:"videoUris,omitempty"`
	VideoMetadata json.RawMessage `json:"videoMetadata,omitempty"`
	AudioURI      string          `json:"audioUri,omitempty"`
	Analysis      string          `json:"analysis,omitempty"`
	Error         string          `json:"error,omitempty"`
	Progress      string          `json:"progress,omitempty"`
	AspectRatio   string          `json:"aspectRatio,omitempty"`
	Resolution    string          `json:"resolution,omitempty"`
	Duration      float64         `json:"duration,omitempty"`

	GenerationMode VideoGenerationMode `json:"generationMode,omitempty"`
	SelectedFrame  string              `json:"selectedFrame,omitempty"`
	CroppedFrame   string              `json:"croppedFrame,omitempty"`
	SortedInputIDs []string            `json:"sortedInputIds,omitempty"`

	SystemPrompt   string `json:"systemPrompt,omitempty"`
	UserPrompt     string `json:"userPrompt,omitempty"`
	NegativePrompt string `json:"negativePrompt,omitempty"`
	FullPrompt     string `json:"fullPrompt,omitempty"`

	GridImages        []string `json:"gridImages,omitempty"`
	SelectedGridIndex *int     `json:"selectedGridIndex,omitempty"`

	// StoryData is the story studio's script, kept as written.
	StoryData     json.RawMessage   `json:"storyData,omitempty"`
	CharacterRefs map[string]string `json:"characterRefs,omitempty"`
	SceneRefs     map[string]string `json:"sceneRefs,omitempty"`

	StoryStyle     string  `json:"storyStyle,omitempty"`
	TargetDuration float64 `json:"targetDuration,omitempty"`
	ShotCount      int     `json:"shotCount,omitempty"`

	CurrentCharacterIndex *int `json:"currentCharacterIndex,omitempty"`
	CurrentSceneIndex     *int `json:"currentSceneIndex,omitempty"`
	CurrentShotIndex      *int `json:"currentShotIndex,omitempty"`

	HorizontalAngle float64 `json:"horizontalAngle,omitempty"`
	VerticalAngle   float64 `json:"verticalAngle,omitempty"`
	CameraZoom      float64 `json:"cameraZoom,omitempty"`
	CameraPrompt    string  `json:"cameraPrompt,omitempty"`

	// Extra holds data keys not modelled above so they survive a load and
	// save unchanged.
	Extra map[string]json.RawMessage `json:"-"`
}

// nodeDataFields has NodeData's layout without its JSON methods.
type nodeDataFields NodeData

// dataKeys are the lower-cased JSON names of the modelled fields.
var dataKeys = func() map[string]bool {
	t := reflect.TypeFor[NodeData]()
	keys := make(map[string]bool, t.NumField())
	for i := range t.NumField() {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name != "" && name != "-" {
			keys[strings.ToLower(name)] = true
		}
	}
	return keys
}()

func (d *NodeData) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		return nil
	}
	var f nodeDataFields
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*d = NodeData(f)
	for k, v := range raw {
		if dataKeys[strings.ToLower(k)] {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[k] = v
	}
	return nil
}

func (d NodeData) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(nodeDataFields(d))
	if err != nil || len(d.Extra) == 0 {
		return b, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	for k, v := range d.Extra {
		if _, ok := m[k]; !ok {
			m[k] = v
		}
	}
	return json.Marshal(m)
}

// Clone returns a copy of d that shares no slices or maps with it.
func (d NodeData) Clone() NodeData {
	out := d
	out.Images = slices.Clone(d.Images)
	out.VideoURIs = slices.Clone(d.VideoURIs)
	out.SortedInputIDs = slices.Clone(d.SortedInputIDs)
	out.GridImages = slices.Clone(d.GridImages)
	out.VideoMetadata = slices.Clone(d.VideoMetadata)
	out.StoryData = slices.Clone(d.StoryData)
	out.CharacterRefs = maps.Clone(d.CharacterRefs)
	out.SceneRefs = maps.Clone(d.SceneRefs)
	out.SelectedGridIndex = cloneInt(d.SelectedGridIndex)
	out.CurrentCharacterIndex = cloneInt(d.CurrentCharacterIndex)
	out.CurrentSceneIndex = cloneInt(d.CurrentSceneIndex)
	out.CurrentShotIndex = cloneInt(d.CurrentShotIndex)
	if d.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(d.Extra))
		for k, v := range d.Extra {
			out.Extra[k] = slices.Clone(v)
		}
	}
	return out
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// ErrInvalidPatch reports a data patch whose values do not fit NodeData.
var ErrInvalidPatch = errors.New("invalid data patch")

// DataPatch is a JSON merge patch for NodeData. A present key replaces the
// current value even when empty, and null removes it. Nested objects are
// replaced whole.
type DataPatch map[string]json.RawMessage

// PatchOf builds a patch from the non-empty fields of d. It returns nil when
// d does not encode.
func PatchOf(d NodeData) DataPatch {
	b, err := json.Marshal(d)
	if err != nil {
		return nil
	}
	var p DataPatch
	if err := json.Unmarshal(b, &p); err != nil {
		return nil
	}
	return p
}

// Apply returns d with p merged in. d is left untouched.
func (d NodeData) Apply(p DataPatch) (NodeData, error) {
	if len(p) == 0 {
		return d.Clone(), nil
	}
	b, err := json.Marshal(d)
	if err != nil {
		return d, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return d, err
	}
	for k, v := range p {
		if len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			delete(m, k)
			continue
		}
		m[k] = v
	}
	if b, err = json.Marshal(m); err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	var out NodeData
	if err := json.Unmarshal(b, &out); err != nil {
		return d, fmt.Errorf("%w: %v", ErrInvalidPatch, err)
	}
	return out, nil
}

// Has reports whether the patch sets key to a non-null value.
func (p DataPatch) Has(key string) bool {
	v, ok := p[key]
	return ok && len(v) > 0 && !bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

type Node struct {
	ID     string     `json:"id"`
	Type   NodeType   `json:"type"`
	X      float64    `json:"x"`
	Y      float64    `json:"y"`
	Width  *float64   `json:"width,omitempty"`
	Height *float64   `json:"height,omitempty"`
	Title  string     `json:"title"`
	Status NodeStatus `json:"status"`
	Data   NodeData   `json:"data"`
	Inputs []string   `json:"inputs"`
}

// Clone returns a deep copy of n.
func (n Node) Clone() Node {
	out := n
	if n.Width != nil {
		w := *n.Width
		out.Width = &w
	}
	if n.Height != nil {
		h := *n.Height
		out.Height = &h
	}
	out.Data = n.Data.Clone()
	out.Inputs = slices.Clone(n.Inputs)
	if out.Inputs == nil {
		out.Inputs = []string{}
	}
	return out
}

// Connection is a directed edge; From is the upstream (output) side.
type Connection struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Group is a rectangular container. Membership is never stored: a node belongs
// to a group when its centre lies inside the rectangle at query time.
type Group struct {
	ID     string  `json:"id"`
	Title  string  `json:"title"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Scene is the mutable graph state: nodes, connections and groups.
type Scene struct {
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Groups      []Group      `json:"groups"`
}

// NewScene returns an empty scene with non-nil collections.
func NewScene() *Scene {
	return &Scene{
		Nodes:       []Node{},
		Connections: []Connection{},
		Groups:      []Group{},
	}
}

// Clone returns a structural deep copy of s. Mutating the copy never affects s.
func (s *Scene) Clone() *Scene {
	out := &Scene{
		Nodes:       make([]Node, len(s.Nodes)),
		Connections: make([]Connection, len(s.Connections)),
		Groups:      make([]Group, len(s.Groups)),
	}
	for i, n := range s.Nodes {
		out.Nodes[i] = n.Clone()
	}
	copy(out.Connections, s.Connections)
	copy(out.Groups, s.Groups)
	return out
}

type Workflow struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Thumbnail   string       `json:"thumbnail"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
	Groups      []Group      `json:"groups"`
}

// Clone returns a deep copy of w.
func (w Workflow) Clone() Workflow {
	sc := (&Scene{Nodes: w.Nodes, Connections: w.Connections, Groups: w.Groups}).Clone()
	w.Nodes, w.Connections, w.Groups = sc.Nodes, sc.Connections, sc.Groups
	return w
}

type AssetType string

const (
	AssetImage AssetType = "image"
	AssetVideo AssetType = "video"
	AssetAudio AssetType = "audio"
)

type AssetEntry struct {
	ID        string    `json:"id"`
	Type      AssetType `json:"type"`
	Src       string    `json:"src"`
	Title     string    `json:"title"`
	Timestamp int64     `json:"timestamp"`
}

// Float returns a pointer to v, for the optional node dimensions.
func Float(v float64) *float64 {
	return &v
}

// Workspace is everything persisted for one project: the scene plus the saved
// workflows and the asset history.
type Workspace struct {
	Scene     *Scene       `json:"scene"`
	Workflows []Workflow   `json:"workflows"`
	Assets    []AssetEntry `json:"assets"`
}
