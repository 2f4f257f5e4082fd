package document

import (
	"github.com/sunstudio/sunstudio/backend-go/internal/typeid"
)

// NewSampleScene builds a small prompt → image → video chain inside a group,
// used by the playground canvas.
func NewSampleScene() *Scene {
	promptID := typeid.NewNodeID()
	imageID := typeid.NewNodeID()
	videoID := typeid.NewNodeID()

	prompt := NodePromptInput.DefaultData()
	prompt.Prompt = "A lighthouse on a cliff at dusk, waves crashing below"

	image := NodeImageGenerator.DefaultData()
	image.AspectRatio = "16:9"
	image.ImageCount = 1

	video := NodeVideoGenerator.DefaultData()
	video.AspectRatio = "16:9"
	video.VideoCount = 1

	return &Scene{
		Nodes: []Node{
			{
				ID:     promptID,
				Type:   NodePromptInput,
				X:      100,
				Y:      100,
				Width:  Float(420),
				Title:  NodePromptInput.Title(),
				Status: StatusIdle,
				Data:   prompt,
				Inputs: []string{},
			},
			{
				ID:     imageID,
				Type:   NodeImageGenerator,
				X:      620,
				Y:      100,
				Width:  Float(420),
				Title:  NodeImageGenerator.Title(),
				Status: StatusIdle,
				Data:   image,
				Inputs: []string{promptID},
			},
			{
				ID:     videoID,
				Type:   NodeVideoGenerator,
				X:      1140,
				Y:      100,
				Width:  Float(420),
				Title:  NodeVideoGenerator.Title(),
				Status: StatusIdle,
				Data:   video,
				Inputs: []string{imageID},
			},
		},
		Connections: []Connection{
			{From: promptID, To: imageID},
			{From: imageID, To: videoID},
		},
		Groups: []Group{
			{
				ID:     typeid.NewGroupID(),
				Title:  "Sample Pipeline",
				X:      68,
				Y:      68,
				Width:  1524,
				Height: 424,
			},
		},
	}
}
