// Package dispatch runs node actions against a Generator and writes the
// results back into the canvas engine.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
	"github.com/sunstudio/sunstudio/backend-go/internal/engine"
)

var (
	ErrNodeBusy     = errors.New("node action already running")
	ErrNodeNotFound = errors.New("node not found")
	ErrNoAction     = errors.New("node type has no action")

	errNoVideoInput = errors.New("no video input found")
	errNoImageInput = errors.New("connect an image as input first")
)

// fallbackNotice is left in data.error when a video backend returns a still.
const fallbackNotice = "Region restricted: generated a preview image instead."

const defaultConcurrency = 4

// Options configure a Dispatcher.
type Options struct {
	// Concurrency bounds the generations one storyboard fans out at once.
	Concurrency int
	// Timeout bounds a single action. Zero means no limit.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Dispatcher executes node actions. Each node runs at most one action at a
// time; different nodes run independently.
type Dispatcher struct {
	engine *engine.Engine
	gen    Generator
	opts   Options
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

// New creates a dispatcher writing into e.
func New(e *engine.Engine, gen Generator, opts Options) *Dispatcher {
	if gen == nil {
		gen = Unconfigured{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		engine:   e,
		gen:      gen,
		opts:     opts,
		logger:   opts.Logger,
		ctx:      ctx,
		cancel:   cancel,
		inFlight: make(map[string]struct{}),
	}
}

// Generator returns the backend the dispatcher calls.
func (d *Dispatcher) Generator() Generator { return d.gen }

func hasAction(t document.NodeType) bool {
	switch t {
	case document.NodeImageGenerator, document.NodeVideoGenerator, document.NodeAudioGenerator,
		document.NodeVideoAnalyzer, document.NodeImageEditor, document.NodeMultiAngleCamera:
		return true
	}
	return false
}

// claim marks ids as running. It fails without claiming anything if one of
// them already is.
func (d *Dispatcher) claim(ids ...string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		if _, busy := d.inFlight[id]; busy {
			return false
		}
	}
	for _, id := range ids {
		d.inFlight[id] = struct{}{}
	}
	return true
}

func (d *Dispatcher) release(id string) {
	d.mu.Lock()
	delete(d.inFlight, id)
	d.mu.Unlock()
}

// Busy reports whether an action is running for the node.
func (d *Dispatcher) Busy(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inFlight[id]
	return ok
}

// Execute starts the node's action in the background and returns once the
// node is marked WORKING. The action outlives ctx's cancellation but keeps its
// values; Close cancels it.
func (d *Dispatcher) Execute(ctx context.Context, nodeID, promptOverride string) error {
	n, ok := d.engine.Node(nodeID)
	if !ok {
		return ErrNodeNotFound
	}
	if !hasAction(n.Type) {
		return ErrNoAction
	}
	if !d.claim(nodeID) {
		return ErrNodeBusy
	}

	node, inputs, err := d.engine.BeginAction(nodeID)
	if err != nil {
		d.release(nodeID)
		return ErrNodeNotFound
	}

	runCtx, cancel := d.actionContext(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer d.release(nodeID)
		defer cancel()
		d.run(runCtx, node, inputs, promptOverride)
	}()
	return nil
}

func (d *Dispatcher) actionContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.WithoutCancel(parent))
	stop := context.AfterFunc(d.ctx, cancel)
	if d.opts.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, d.opts.Timeout)
		return ctx, func() {
			cancelTimeout()
			stop()
			cancel()
		}
	}
	return ctx, func() {
		stop()
		cancel()
	}
}

// Wait blocks until every running action has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Close cancels running actions and waits for them to record their outcome.
func (d *Dispatcher) Close() {
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, node document.Node, inputs []document.Node, override string) {
	prompt := composePrompt(node, inputs, override)

	var (
		result   document.NodeData
		expanded bool
		err      error
	)
	switch node.Type {
	case document.NodeImageGenerator:
		if expanded = d.storyboard(ctx, node, inputs, prompt); expanded {
			break
		}
		result, err = d.image(ctx, node, inputs, prompt)
	case document.NodeVideoGenerator:
		result, err = d.video(ctx, node, inputs, prompt)
	case document.NodeAudioGenerator:
		result, err = d.audio(ctx, prompt)
	case document.NodeVideoAnalyzer:
		result, err = d.analyze(ctx, node, inputs, prompt)
	case document.NodeImageEditor:
		result, err = d.edit(ctx, node, inputs, prompt)
	case document.NodeMultiAngleCamera:
		result, err = d.camera(ctx, node, inputs)
	default:
		err = ErrNoAction
	}

	if err != nil {
		d.fail(node.ID, err)
		return
	}
	if expanded {
		return
	}
	if !d.engine.CompleteAction(node.ID, result) {
		d.logger.Debug("dropping result for deleted node", "node", node.ID)
		return
	}
	d.logger.Info("node action completed", "node", node.ID, "type", node.Type)
}

func (d *Dispatcher) fail(id string, err error) {
	d.logger.Info("node action failed", "node", id, "error", err)
	if !d.engine.FailAction(id, err) {
		d.logger.Debug("dropping error for deleted node", "node", id)
	}
}

func (d *Dispatcher) image(ctx context.Context, n document.Node, inputs []document.Node, prompt string) (document.NodeData, error) {
	ratio := n.Data.AspectRatio
	if ratio == "" {
		ratio = "16:9"
	}
	images, err := d.gen.GenerateImage(ctx, ImageRequest{
		Prompt:      prompt,
		Model:       n.Data.Model,
		InputImages: inputImages(inputs),
		AspectRatio: ratio,
		Resolution:  n.Data.Resolution,
		Count:       max(1, n.Data.ImageCount),
	})
	if err != nil {
		return document.NodeData{}, fmt.Errorf("generate image: %w", err)
	}
	if len(images) == 0 {
		return document.NodeData{}, errors.New("generate image: empty result")
	}
	return document.NodeData{Image: images[0], Images: images}, nil
}

// storyboard expands an image node into one child per planned shot when the
// prompt asks for a sequence. It reports whether the node was handled;
// planning failures fall back to a single image.
func (d *Dispatcher) storyboard(ctx context.Context, n document.Node, inputs []document.Node, prompt string) bool {
	if !looksLikeStoryboard(prompt) {
		return false
	}
	shots, err := d.gen.PlanStoryboard(ctx, prompt, strings.Join(upstreamText(inputs), "\n"))
	if err != nil {
		d.logger.Warn("storyboard planning failed", "node", n.ID, "error", err)
		return false
	}
	if len(shots) <= 1 {
		return false
	}

	children, err := d.engine.ExpandStoryboard(n.ID, shots)
	if err != nil {
		d.logger.Debug("dropping storyboard for deleted node", "node", n.ID)
		return true
	}
	refs := inputImages(inputs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.opts.Concurrency)
	for _, child := range children {
		if !d.claim(child.ID) {
			continue
		}
		g.Go(func() error {
			defer d.release(child.ID)
			images, err := d.gen.GenerateImage(gctx, ImageRequest{
				Prompt:      child.Data.Prompt,
				Model:       child.Data.Model,
				InputImages: refs,
				AspectRatio: child.Data.AspectRatio,
				Resolution:  child.Data.Resolution,
				Count:       1,
			})
			switch {
			case err != nil:
				d.fail(child.ID, fmt.Errorf("generate image: %w", err))
			case len(images) == 0:
				d.fail(child.ID, errors.New("generate image: empty result"))
			default:
				d.engine.CompleteAction(child.ID, document.NodeData{Image: images[0], Images: images})
			}
			// one failed shot must not cancel its siblings
			return nil
		})
	}
	_ = g.Wait()
	return true
}

func (d *Dispatcher) video(ctx context.Context, n document.Node, inputs []document.Node, prompt string) (document.NodeData, error) {
	req := videoStrategy(n, inputs, prompt)
	if req.Mode == document.VideoModeContinue && req.VideoInput == "" {
		return document.NodeData{}, errNoVideoInput
	}
	res, err := d.gen.GenerateVideo(ctx, req)
	if err != nil {
		return document.NodeData{}, fmt.Errorf("generate video: %w", err)
	}
	if res.FallbackImage {
		return document.NodeData{Image: res.URI, Error: fallbackNotice}, nil
	}
	return document.NodeData{VideoURI: res.URI, VideoURIs: res.URIs, VideoMetadata: res.Metadata}, nil
}

func (d *Dispatcher) audio(ctx context.Context, prompt string) (document.NodeData, error) {
	uri, err := d.gen.GenerateAudio(ctx, prompt)
	if err != nil {
		return document.NodeData{}, fmt.Errorf("generate audio: %w", err)
	}
	return document.NodeData{AudioURI: uri}, nil
}

func (d *Dispatcher) analyze(ctx context.Context, n document.Node, inputs []document.Node, prompt string) (document.NodeData, error) {
	video := n.Data.VideoURI
	for _, in := range inputs {
		if video != "" {
			break
		}
		video = in.Data.VideoURI
	}
	if video == "" {
		return document.NodeData{}, errNoVideoInput
	}
	text, err := d.gen.AnalyzeVideo(ctx, video, prompt, n.Data.Model)
	if err != nil {
		return document.NodeData{}, fmt.Errorf("analyze video: %w", err)
	}
	return document.NodeData{Analysis: text}, nil
}

func (d *Dispatcher) edit(ctx context.Context, n document.Node, inputs []document.Node, prompt string) (document.NodeData, error) {
	img := n.Data.Image
	if img == "" {
		if refs := inputImages(inputs); len(refs) > 0 {
			img = refs[0]
		}
	}
	if img == "" {
		return document.NodeData{}, errNoImageInput
	}
	out, err := d.gen.EditImage(ctx, img, prompt, n.Data.Model)
	if err != nil {
		return document.NodeData{}, fmt.Errorf("edit image: %w", err)
	}
	return document.NodeData{Image: out}, nil
}

// camera renders a 3x3 multi-angle sheet from the first input image, trying
// the primary model before the fallback.
func (d *Dispatcher) camera(ctx context.Context, n document.Node, inputs []document.Node) (document.NodeData, error) {
	refs := inputImages(inputs)
	if len(refs) == 0 {
		return document.NodeData{}, errNoImageInput
	}
	prompt := cameraPrompt(n.Data)
	if err := d.engine.UpdateNode(n.ID, engine.NodeUpdate{Data: document.PatchOf(document.NodeData{CameraPrompt: prompt})}); err != nil {
		d.logger.Debug("camera prompt not recorded", "node", n.ID, "error", err)
	}

	req := ImageRequest{Prompt: prompt, Model: cameraPrimaryModel, InputImages: refs[:1], AspectRatio: cameraAspectRatio, Count: 1}
	images, err := d.gen.GenerateImage(ctx, req)
	if err != nil {
		d.logger.Info("primary camera model failed, retrying with fallback", "node", n.ID, "error", err)
		req.Model = cameraFallbackModel
		images, err = d.gen.GenerateImage(ctx, req)
	}
	if err != nil {
		return document.NodeData{}, fmt.Errorf("generate camera grid: %w", err)
	}
	if len(images) == 0 {
		return document.NodeData{}, errors.New("generate camera grid: empty result")
	}
	return document.NodeData{GridImages: images, Image: images[0]}, nil
}
