// Package persist saves and restores a project's workspace as five JSON blobs,
// moving inline media out into the media store.
package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
	"github.com/sunstudio/sunstudio/backend-go/internal/store"
)

// Blob names.
const (
	BlobAssets      = "assets"
	BlobWorkflows   = "workflows"
	BlobNodes       = "nodes"
	BlobConnections = "connections"
	BlobGroups      = "groups"
)

// BlobNames lists every blob a project has.
var BlobNames = []string{BlobAssets, BlobWorkflows, BlobNodes, BlobConnections, BlobGroups}

// ValidBlob reports whether name is one of BlobNames.
func ValidBlob(name string) bool { return slices.Contains(BlobNames, name) }

var (
	ErrUnknownBlob = errors.New("unknown blob")
	ErrInvalidBlob = errors.New("invalid blob")
)

// MediaToken prefixes a reference to an offloaded media payload.
const MediaToken = "@media:"

// Store loads and saves workspaces.
type Store struct {
	blobs  store.BlobStore
	media  store.MediaStore
	logger *slog.Logger
}

func New(blobs store.BlobStore, media store.MediaStore, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{blobs: blobs, media: media, logger: logger}
}

// Load reads every blob of project. A missing or unreadable blob is treated
// as empty; failures are logged, never returned.
func (s *Store) Load(ctx context.Context, project string) document.Workspace {
	ws := document.Workspace{
		Scene:     document.NewScene(),
		Workflows: []document.Workflow{},
		Assets:    []document.AssetEntry{},
	}
	read(ctx, s, project, BlobNodes, &ws.Scene.Nodes)
	read(ctx, s, project, BlobConnections, &ws.Scene.Connections)
	read(ctx, s, project, BlobGroups, &ws.Scene.Groups)
	read(ctx, s, project, BlobWorkflows, &ws.Workflows)
	read(ctx, s, project, BlobAssets, &ws.Assets)

	r := s.resolver(ctx, project)
	rewriteBlob(ws.Scene.Nodes, r)
	rewriteBlob(ws.Workflows, r)
	rewriteBlob(ws.Assets, r)
	return ws
}

// read decodes one blob into dst, leaving dst untouched on failure.
func read[T any](ctx context.Context, s *Store, project, name string, dst *T) {
	data, err := s.blobs.Get(ctx, project, name)
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		s.logger.Warn("load blob", "project", project, "blob", name, "error", err)
		return
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		s.logger.Warn("decode blob", "project", project, "blob", name, "error", err)
		return
	}
	*dst = v
}

// Save writes all five blobs. Inline data: URIs are offloaded first; a payload
// that fails to offload stays inline. Failures are logged and returned.
func (s *Store) Save(ctx context.Context, project string, ws document.Workspace) error {
	scene := ws.Scene
	if scene == nil {
		scene = document.NewScene()
	}
	scene = scene.Clone()
	workflows := make([]document.Workflow, 0, len(ws.Workflows))
	for _, wf := range ws.Workflows {
		workflows = append(workflows, wf.Clone())
	}
	assets := slices.Clone(ws.Assets)
	if assets == nil {
		assets = []document.AssetEntry{}
	}

	o := s.offloader(ctx, project)
	rewriteBlob(scene.Nodes, o)
	rewriteBlob(workflows, o)
	rewriteBlob(assets, o)

	blobs := map[string]any{
		BlobNodes:       scene.Nodes,
		BlobConnections: scene.Connections,
		BlobGroups:      scene.Groups,
		BlobWorkflows:   workflows,
		BlobAssets:      assets,
	}
	g, gctx := errgroup.WithContext(ctx)
	for name, v := range blobs {
		g.Go(func() error {
			data, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode %s: %w", name, err)
			}
			return s.blobs.Put(gctx, project, name, data)
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("save workspace", "project", project, "error", err)
		return err
	}
	return nil
}

// LoadBlob returns one blob in its typed form with media resolved. A missing
// blob reads as empty.
func (s *Store) LoadBlob(ctx context.Context, project, name string) (any, error) {
	if !ValidBlob(name) {
		return nil, ErrUnknownBlob
	}
	data, err := s.blobs.Get(ctx, project, name)
	if errors.Is(err, store.ErrNotFound) {
		data = []byte("[]")
	} else if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}
	v, err := decodeBlob(name, data)
	if err != nil {
		return nil, err
	}
	rewriteBlob(v, s.resolver(ctx, project))
	return v, nil
}

// SaveBlob replaces one blob from its JSON form, offloading inline media.
func (s *Store) SaveBlob(ctx context.Context, project, name string, data []byte) error {
	if !ValidBlob(name) {
		return ErrUnknownBlob
	}
	v, err := decodeBlob(name, data)
	if err != nil {
		return err
	}
	rewriteBlob(v, s.offloader(ctx, project))
	out, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	return s.blobs.Put(ctx, project, name, out)
}

func decodeAs[S ~[]E, E any](data []byte) (any, error) {
	var v S
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlob, err)
	}
	if v == nil {
		v = S{}
	}
	return v, nil
}

// decodeBlob decodes the named blob into its slice type.
func decodeBlob(name string, data []byte) (any, error) {
	switch name {
	case BlobNodes:
		return decodeAs[[]document.Node](data)
	case BlobConnections:
		return decodeAs[[]document.Connection](data)
	case BlobGroups:
		return decodeAs[[]document.Group](data)
	case BlobWorkflows:
		return decodeAs[[]document.Workflow](data)
	case BlobAssets:
		return decodeAs[[]document.AssetEntry](data)
	}
	return nil, ErrUnknownBlob
}

// rewriteBlob applies fn to every media field in a decoded blob.
func rewriteBlob(v any, fn func(string) string) {
	switch v := v.(type) {
	case []document.Node:
		for i := range v {
			rewriteNode(&v[i], fn)
		}
	case []document.Workflow:
		for i := range v {
			v[i].Thumbnail = fn(v[i].Thumbnail)
			rewriteBlob(v[i].Nodes, fn)
		}
	case []document.AssetEntry:
		for i := range v {
			v[i].Src = fn(v[i].Src)
		}
	}
}

// offloader returns a rewrite that moves data: URIs into the media store.
func (s *Store) offloader(ctx context.Context, project string) func(string) string {
	return func(v string) string {
		if !strings.HasPrefix(v, "data:") {
			return v
		}
		id, err := s.media.Put(ctx, []byte(v))
		if err != nil {
			s.logger.Warn("offload media", "project", project, "error", err)
			return v
		}
		return MediaToken + id
	}
}

// resolver returns a rewrite that turns media tokens back into their
// payloads. Unresolvable tokens are kept.
func (s *Store) resolver(ctx context.Context, project string) func(string) string {
	return func(v string) string {
		id, ok := strings.CutPrefix(v, MediaToken)
		if !ok {
			return v
		}
		data, err := s.media.Get(ctx, id)
		if err != nil {
			s.logger.Warn("resolve media", "project", project, "media", id, "error", err)
			return v
		}
		return string(data)
	}
}

// rewriteNode applies fn to every media field of n.
func rewriteNode(n *document.Node, fn func(string) string) {
	d := &n.Data
	d.Image = fn(d.Image)
	d.VideoURI = fn(d.VideoURI)
	d.AudioURI = fn(d.AudioURI)
	d.SelectedFrame = fn(d.SelectedFrame)
	d.CroppedFrame = fn(d.CroppedFrame)
	for i := range d.Images {
		d.Images[i] = fn(d.Images[i])
	}
	for i := range d.GridImages {
		d.GridImages[i] = fn(d.GridImages[i])
	}
	for k, v := range d.CharacterRefs {
		d.CharacterRefs[k] = fn(v)
	}
	for k, v := range d.SceneRefs {
		d.SceneRefs[k] = fn(v)
	}
}
