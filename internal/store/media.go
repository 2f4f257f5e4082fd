package store

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// MediaPrefix starts every media id.
const MediaPrefix = "media_"

var ErrInvalidMediaID = errors.New("invalid media id")

// MediaStore keeps binary payloads under ids derived from their content.
type MediaStore interface {
	Put(ctx context.Context, data []byte) (string, error)
	Get(ctx context.Context, id string) ([]byte, error)
}

// MediaID returns the content address of data.
func MediaID(data []byte) string {
	sum := blake2b.Sum256(data)
	return MediaPrefix + hex.EncodeToString(sum[:])
}

// ValidMediaID reports whether id has the shape MediaID produces.
func ValidMediaID(id string) bool {
	hexPart, ok := strings.CutPrefix(id, MediaPrefix)
	if !ok || len(hexPart) != blake2b.Size256*2 {
		return false
	}
	_, err := hex.DecodeString(hexPart)
	return err == nil
}

// FileMedia stores media as files named by id in one directory.
type FileMedia struct {
	dir string
}

func NewFileMedia(dir string) (*FileMedia, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	return &FileMedia{dir: dir}, nil
}

func (f *FileMedia) Put(_ context.Context, data []byte) (string, error) {
	id := MediaID(data)
	path := filepath.Join(f.dir, id)
	if _, err := os.Stat(path); err == nil {
		return id, nil
	}
	tmp, err := os.CreateTemp(f.dir, id+".*.tmp")
	if err != nil {
		return "", fmt.Errorf("create media file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("write media file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close media file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("commit media file: %w", err)
	}
	return id, nil
}

func (f *FileMedia) Get(_ context.Context, id string) ([]byte, error) {
	if !ValidMediaID(id) {
		return nil, ErrInvalidMediaID
	}
	data, err := os.ReadFile(filepath.Join(f.dir, id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read media %s: %w", id, err)
	}
	return data, nil
}

// MemoryMedia is a process-local MediaStore.
type MemoryMedia struct {
	mu    sync.RWMutex
	items map[string][]byte
}

func NewMemoryMedia() *MemoryMedia {
	return &MemoryMedia{items: make(map[string][]byte)}
}

func (m *MemoryMedia) Put(_ context.Context, data []byte) (string, error) {
	id := MediaID(data)
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		m.items[id] = append([]byte(nil), data...)
	}
	return id, nil
}

func (m *MemoryMedia) Get(_ context.Context, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}
