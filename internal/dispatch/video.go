package dispatch

import (
	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

// frameOf returns the still an input contributes to a video: a cropped frame
// beats a picked frame, which beats the plain image.
func frameOf(n document.Node) string {
	switch {
	case n.Data.CroppedFrame != "":
		return n.Data.CroppedFrame
	case n.Data.SelectedFrame != "":
		return n.Data.SelectedFrame
	}
	return n.Data.Image
}

// videoStrategy maps a video node, its inputs and the composed prompt to a
// backend request according to the node's generation mode.
func videoStrategy(n document.Node, inputs []document.Node, prompt string) VideoRequest {
	mode := n.Data.GenerationMode
	if mode == "" {
		mode = document.VideoModeDefault
	}
	ratio := n.Data.AspectRatio
	if ratio == "" {
		ratio = "16:9"
	}
	req := VideoRequest{
		Prompt:      prompt,
		Model:       n.Data.Model,
		AspectRatio: ratio,
		Resolution:  n.Data.Resolution,
		Count:       max(1, n.Data.VideoCount),
		Mode:        mode,
	}

	var frames []string
	for _, in := range inputs {
		if f := frameOf(in); f != "" {
			frames = append(frames, f)
		}
		if req.VideoInput == "" && in.Data.VideoURI != "" {
			req.VideoInput = in.Data.VideoURI
		}
	}

	switch mode {
	case document.VideoModeContinue:
		// the backend extends VideoInput; stills are ignored
	case document.VideoModeCut:
		if len(frames) > 0 {
			req.StartImage = frames[0]
		}
		req.VideoInput = ""
	case document.VideoModeFirstLastFrame:
		if len(frames) > 0 {
			req.StartImage = frames[0]
		}
		if len(frames) > 1 {
			req.ReferenceImages = frames[1:2]
		}
		req.VideoInput = ""
	case document.VideoModeCharacterRef:
		req.ReferenceImages = frames
		req.VideoInput = ""
	default:
		if len(frames) > 0 {
			req.StartImage = frames[0]
		}
		req.VideoInput = ""
	}
	return req
}
