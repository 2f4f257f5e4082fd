package media

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"

	"github.com/sunstudio/sunstudio/backend-go/internal/store"
)

const maxUploadSize = 50 << 20 // 50MB

var ErrInvalidDataURI = errors.New("invalid data uri")

// UploadResponse is returned from the upload endpoint.
type UploadResponse struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Type   string `json:"type"`
	Name   string `json:"name"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Handler serves media upload and retrieval endpoints on top of a
// content-addressed media store. Payloads are kept as data URIs.
type Handler struct {
	media store.MediaStore
}

func NewHandler(media store.MediaStore) *Handler {
	return &Handler{media: media}
}

// EncodeDataURI builds a base64 data URI.
func EncodeDataURI(contentType string, data []byte) string {
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// DecodeDataURI splits a data URI into its media type and payload. A missing
// media type defaults to text/plain.
func DecodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURI
	}
	meta, isBase64 := strings.CutSuffix(meta, ";base64")
	if meta == "" {
		meta = "text/plain;charset=US-ASCII"
	}
	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
		}
		return meta, data, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURI, err)
	}
	return meta, []byte(text), nil
}

// kindOf maps a content type to the canvas asset kind.
func kindOf(contentType string) string {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch {
	case strings.HasPrefix(mt, "image/"):
		return "image"
	case strings.HasPrefix(mt, "video/"):
		return "video"
	case strings.HasPrefix(mt, "audio/"):
		return "audio"
	}
	return ""
}

// Upload handles POST /media/upload (multipart form with a "file" field).
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "file too large (max 50MB)", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "failed to read file", http.StatusBadRequest)
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	kind := kindOf(contentType)
	if kind == "" {
		http.Error(w, "only image, video and audio files are supported", http.StatusBadRequest)
		return
	}

	resp := UploadResponse{Type: kind, Name: header.Filename}
	if kind == "image" {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err == nil {
			resp.Width, resp.Height = cfg.Width, cfg.Height
		}
	}

	id, err := h.media.Put(r.Context(), []byte(EncodeDataURI(contentType, data)))
	if err != nil {
		slog.Error("store media", "error", err)
		http.Error(w, "failed to save file", http.StatusInternalServerError)
		return
	}
	resp.ID = id
	resp.URL = "/media/" + id

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// Serve handles GET /media/{id}, decoding the stored data URI.
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !store.ValidMediaID(id) {
		http.Error(w, "invalid media id", http.StatusBadRequest)
		return
	}

	raw, err := h.media.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		slog.Error("read media", "error", err, "id", id)
		http.Error(w, "failed to read media", http.StatusInternalServerError)
		return
	}

	contentType, data, err := DecodeDataURI(string(raw))
	if err != nil {
		slog.Error("decode media", "error", err, "id", id)
		http.Error(w, "corrupt media", http.StatusInternalServerError)
		return
	}

	// Ids are content hashes, so payloads never change
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
