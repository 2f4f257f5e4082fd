package main

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sunstudio/sunstudio/backend-go/internal/collab"
	"github.com/sunstudio/sunstudio/backend-go/internal/dispatch"
	"github.com/sunstudio/sunstudio/backend-go/internal/persist"
	"github.com/sunstudio/sunstudio/backend-go/internal/store"
)

func testRouter() *mux.Router {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	p := persist.New(store.NewMemory(), store.NewMemoryMedia(), logger)
	hub := collab.NewHub(p, dispatch.Unconfigured{}, collab.Options{Logger: logger})

	r := mux.NewRouter()
	r.HandleFunc("/api/projects/{projectId}/state/{blob}", getBlob(p)).Methods("GET")
	r.HandleFunc("/api/projects/{projectId}/state/{blob}", putBlob(p, hub)).Methods("PUT")
	r.HandleFunc("/api/projects/{projectId}/scene", getScene(p, hub)).Methods("GET")
	return r
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
	return rec
}

func TestStateBlobRoundTrip(t *testing.T) {
	r := testRouter()

	rec := serve(r, http.MethodPut, "/api/projects/p1/state/nodes",
		`[{"id":"a","type":"PROMPT_INPUT","x":1,"y":2,"title":"Prompt","status":"IDLE","data":{"prompt":"hi"},"inputs":[]}]`)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	rec = serve(r, http.MethodGet, "/api/projects/p1/state/nodes", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"prompt":"hi"`)

	rec = serve(r, http.MethodGet, "/api/projects/p1/scene", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"a"`)
}

func TestStateBlobErrors(t *testing.T) {
	r := testRouter()

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/api/projects/p1/state/secrets", "").Code)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPut, "/api/projects/p1/state/secrets", `[]`).Code)
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPut, "/api/projects/p1/state/groups", `{"x":1}`).Code)

	rec := serve(r, http.MethodGet, "/api/projects/p1/state/groups", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}
