package dispatch

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

var storyboardPattern = regexp.MustCompile(`(?i)分镜|storyboard|sequence|shots|frames|json`)

// looksLikeStoryboard reports whether an image prompt asks for a shot
// sequence rather than a single picture.
func looksLikeStoryboard(prompt string) bool {
	return storyboardPattern.MatchString(prompt)
}

// upstreamText collects the text produced by prompt and analyzer inputs, in
// input order.
func upstreamText(inputs []document.Node) []string {
	var out []string
	for _, in := range inputs {
		var text string
		switch in.Type {
		case document.NodePromptInput:
			text = in.Data.Prompt
		case document.NodeVideoAnalyzer:
			text = in.Data.Analysis
		}
		if strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}
	return out
}

// composePrompt builds the effective prompt: the override or the node's own
// prompt, with upstream text prepended on its own lines.
func composePrompt(n document.Node, inputs []document.Node, override string) string {
	prompt := override
	if prompt == "" {
		prompt = n.Data.Prompt
	}
	upstream := upstreamText(inputs)
	if len(upstream) == 0 {
		return prompt
	}
	joined := strings.Join(upstream, "\n")
	if prompt == "" {
		return joined
	}
	return joined + "\n" + prompt
}

// inputImages returns the image output of every input that has one.
func inputImages(inputs []document.Node) []string {
	var out []string
	for _, in := range inputs {
		if in.Data.Image != "" {
			out = append(out, in.Data.Image)
		}
	}
	return out
}

// --- Multi-angle camera ---

const (
	cameraPrimaryModel  = "imagen-3.0-generate-002"
	cameraFallbackModel = "gemini-2.5-flash-image"
	cameraAspectRatio   = "21:9"
	defaultCameraZoom   = 5.0
)

func normalizeAngle(a float64) float64 {
	return math.Mod(math.Mod(a, 360)+360, 360)
}

func azimuthPhrase(angle float64) string {
	a := normalizeAngle(angle)
	switch {
	case a < 22.5 || a >= 337.5:
		return "direct front view"
	case a < 67.5:
		return "front three-quarter view"
	case a < 112.5:
		return "side profile view"
	case a < 157.5:
		return "rear three-quarter view"
	case a < 202.5:
		return "direct back view"
	case a < 247.5:
		return "rear three-quarter view"
	case a < 292.5:
		return "side profile view"
	default:
		return "front three-quarter view"
	}
}

func elevationPhrase(angle float64) string {
	switch {
	case angle >= 80:
		return "directly overhead top-down"
	case angle >= 40:
		return "high-angle bird's-eye view"
	case angle >= 10:
		return "slightly elevated angle"
	case angle >= -10:
		return "eye-level"
	case angle >= -30:
		return "slightly low angle"
	case angle >= -60:
		return "low-angle worm's-eye view"
	default:
		return "directly underneath looking straight up"
	}
}

func distancePhrase(zoom float64) string {
	switch {
	case zoom <= 0.5:
		return "extreme close-up (face only, very tight framing)"
	case zoom <= 1.5:
		return "close-up (head and shoulders)"
	case zoom <= 3:
		return "medium close-up (chest up)"
	case zoom <= 4.5:
		return "medium shot (waist up)"
	case zoom <= 6:
		return "medium full shot (knees up)"
	case zoom <= 7.5:
		return "full shot (entire body visible)"
	case zoom <= 9:
		return "wide shot (body with environment)"
	default:
		return "extreme wide shot (small figure in large environment)"
	}
}

// cameraPanels describes the nine panels of the contact sheet. Columns vary
// azimuth by ±20° and distance by ±1, rows vary elevation by ±15°.
func cameraPanels(h, v, zoom float64) []string {
	hOffsets := [3]float64{-20, 0, 20}
	vOffsets := [3]float64{15, 0, -15}
	zOffsets := [3]float64{-1, 0, 1}

	panels := make([]string, 0, 9)
	for row := range 3 {
		for col := range 3 {
			ph := normalizeAngle(h + hOffsets[col])
			pv := max(-90, min(90, v+vOffsets[row]))
			pz := max(0, min(10, zoom+zOffsets[col]))
			panels = append(panels, fmt.Sprintf("Panel %d: %s, %s, %s",
				row*3+col+1, distancePhrase(pz), azimuthPhrase(ph), elevationPhrase(pv)))
		}
	}
	return panels
}

// cameraPrompt builds the instruction for a 3x3 multi-angle contact sheet of
// the subject in the reference image.
func cameraPrompt(d document.NodeData) string {
	zoom := d.CameraZoom
	if zoom == 0 {
		zoom = defaultCameraZoom
	}
	azimuth := azimuthPhrase(d.HorizontalAngle)
	elevation := elevationPhrase(d.VerticalAngle)
	distance := distancePhrase(zoom)

	var b strings.Builder
	fmt.Fprintf(&b, "Create ONE SINGLE IMAGE in %s aspect ratio containing a 3x3 grid of 9 panels (3 rows, 3 columns) separated by thin lines.\n\n", cameraAspectRatio)
	b.WriteString("Use the reference image for the character's appearance, art style, colour palette, lighting and background style. Keep all of these identical in every panel. Do not copy the reference image's viewing angle.\n\n")
	fmt.Fprintf(&b, "Target viewing angle: %s\nDistance: %s\nHeight: %s\n\n", azimuth, distance, elevation)
	fmt.Fprintf(&b, "Panel 5 (centre) is exactly the target angle. The other panels are small variations around %s:\n", azimuth)
	b.WriteString(strings.Join(cameraPanels(d.HorizontalAngle, d.VerticalAngle, zoom), "\n"))
	b.WriteString("\n\nOutput one image with nine panels, not nine separate images.")
	if d.UserPrompt != "" {
		b.WriteString("\n\nAdditional style requirements:\n")
		b.WriteString(d.UserPrompt)
	}
	return b.String()
}
