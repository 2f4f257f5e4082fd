// Package store holds the persistence backends: named JSON blobs per project
// and content-addressed media.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrNotFound = errors.New("not found")

// BlobStore keeps named JSON documents per project.
type BlobStore interface {
	Get(ctx context.Context, project, name string) ([]byte, error)
	Put(ctx context.Context, project, name string, data []byte) error
}

// Postgres stores blobs in the canvas_blobs table.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, project, name string) ([]byte, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM canvas_blobs WHERE project_id = $1 AND name = $2`,
		project, name,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get blob %s/%s: %w", project, name, err)
	}
	return data, nil
}

func (p *Postgres) Put(ctx context.Context, project, name string, data []byte) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO canvas_blobs (project_id, name, data, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (project_id, name) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		project, name, string(data),
	)
	if err != nil {
		return fmt.Errorf("put blob %s/%s: %w", project, name, err)
	}
	return nil
}

// Memory is a process-local BlobStore.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string][]byte)}
}

func memoryKey(project, name string) string { return project + "/" + name }

func (m *Memory) Get(_ context.Context, project, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.blobs[memoryKey(project, name)]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(data), nil
}

func (m *Memory) Put(_ context.Context, project, name string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[memoryKey(project, name)] = slices.Clone(data)
	return nil
}
