package document

import "encoding/json"

const (
	modelVideo    = "veo-3.1-fast-generate-preview"
	modelAnalysis = "gemini-3-pro-preview"
	modelSpeech   = "gemini-2.5-flash-preview-tts"
	modelImage    = "gemini-2.5-flash-image"
	modelText     = "gemini-3-pro-preview"
)

// Title returns the palette title for a node type.
func (t NodeType) Title() string {
	switch t {
	case NodePromptInput:
		return "Creative Prompt"
	case NodeImageGenerator:
		return "Text to Image"
	case NodeVideoGenerator:
		return "Text to Video"
	case NodeAudioGenerator:
		return "Inspiration Music"
	case NodeVideoAnalyzer:
		return "Video Analysis"
	case NodeImageEditor:
		return "Image Editor"
	case NodeStoryStudio:
		return "Creative Studio"
	case NodeCharacterReference:
		return "Character Reference"
	case NodeSceneReference:
		return "Scene Reference"
	case NodeStoryboardShot:
		return "Storyboard Shot"
	case NodeMultiAngleCamera:
		return "Multi-Angle Camera"
	case NodeGridSplitter:
		return "Grid Splitter"
	default:
		return "Untitled Node"
	}
}

// DefaultModel returns the model a freshly added node of type t uses.
func (t NodeType) DefaultModel() string {
	switch t {
	case NodeVideoGenerator:
		return modelVideo
	case NodeVideoAnalyzer:
		return modelAnalysis
	case NodeAudioGenerator:
		return modelSpeech
	case NodeImageGenerator, NodeImageEditor:
		return modelImage
	default:
		return modelText
	}
}

// DefaultData returns the initial data for a new node of type t.
func (t NodeType) DefaultData() NodeData {
	d := NodeData{Model: t.DefaultModel()}
	switch t {
	case NodeVideoGenerator:
		d.GenerationMode = VideoModeDefault
	case NodeStoryStudio:
		d.StoryStyle = "sci-fi"
		d.TargetDuration = 30
		d.ShotCount = 6
	case NodeMultiAngleCamera:
		d.HorizontalAngle = 0
		d.VerticalAngle = 0
		d.CameraZoom = 5
	}
	return d
}

// MergeData overlays the non-empty fields of patch onto base.
func MergeData(base, patch NodeData) NodeData {
	out := base.Clone()
	p := patch.Clone()
	if p.Prompt != "" {
		out.Prompt = p.Prompt
	}
	if p.Model != "" {
		out.Model = p.Model
	}
	if p.Image != "" {
		out.Image = p.Image
	}
	if p.Images != nil {
		out.Images = p.Images
	}
	if p.ImageCount != 0 {
		out.ImageCount = p.ImageCount
	}
	if p.VideoCount != 0 {
		out.VideoCount = p.VideoCount
	}
	if p.VideoURI != "" {
		out.VideoURI = p.VideoURI
	}
	if p.VideoURIs != nil {
		out.VideoURIs = p.VideoURIs
	}
	if p.VideoMetadata != nil {
		out.VideoMetadata = p.VideoMetadata
	}
	if p.AudioURI != "" {
		out.AudioURI = p.AudioURI
	}
	if p.Analysis != "" {
		out.Analysis = p.Analysis
	}
	if p.Error != "" {
		out.Error = p.Error
	}
	if p.Progress != "" {
		out.Progress = p.Progress
	}
	if p.AspectRatio != "" {
		out.AspectRatio = p.AspectRatio
	}
	if p.Resolution != "" {
		out.Resolution = p.Resolution
	}
	if p.Duration != 0 {
		out.Duration = p.Duration
	}
	if p.GenerationMode != "" {
		out.GenerationMode = p.GenerationMode
	}
	if p.SelectedFrame != "" {
		out.SelectedFrame = p.SelectedFrame
	}
	if p.CroppedFrame != "" {
		out.CroppedFrame = p.CroppedFrame
	}
	if p.SortedInputIDs != nil {
		out.SortedInputIDs = p.SortedInputIDs
	}
	if p.UserPrompt != "" {
		out.UserPrompt = p.UserPrompt
	}
	if p.NegativePrompt != "" {
		out.NegativePrompt = p.NegativePrompt
	}
	if p.GridImages != nil {
		out.GridImages = p.GridImages
	}
	if p.SelectedGridIndex != nil {
		out.SelectedGridIndex = p.SelectedGridIndex
	}
	if p.StoryStyle != "" {
		out.StoryStyle = p.StoryStyle
	}
	if p.TargetDuration != 0 {
		out.TargetDuration = p.TargetDuration
	}
	if p.ShotCount != 0 {
		out.ShotCount = p.ShotCount
	}
	if p.HorizontalAngle != 0 {
		out.HorizontalAngle = p.HorizontalAngle
	}
	if p.VerticalAngle != 0 {
		out.VerticalAngle = p.VerticalAngle
	}
	if p.CameraZoom != 0 {
		out.CameraZoom = p.CameraZoom
	}
	if p.CameraPrompt != "" {
		out.CameraPrompt = p.CameraPrompt
	}
	if p.SystemPrompt != "" {
		out.SystemPrompt = p.SystemPrompt
	}
	if p.FullPrompt != "" {
		out.FullPrompt = p.FullPrompt
	}
	if p.StoryData != nil {
		out.StoryData = p.StoryData
	}
	if p.CharacterRefs != nil {
		out.CharacterRefs = p.CharacterRefs
	}
	if p.SceneRefs != nil {
		out.SceneRefs = p.SceneRefs
	}
	if p.CurrentCharacterIndex != nil {
		out.CurrentCharacterIndex = p.CurrentCharacterIndex
	}
	if p.CurrentSceneIndex != nil {
		out.CurrentSceneIndex = p.CurrentSceneIndex
	}
	if p.CurrentShotIndex != nil {
		out.CurrentShotIndex = p.CurrentShotIndex
	}
	for k, v := range p.Extra {
		if out.Extra == nil {
			out.Extra = make(map[string]json.RawMessage)
		}
		out.Extra[k] = v
	}
	return out
}
