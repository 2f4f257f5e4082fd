package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/sunstudio/sunstudio/backend-go/internal/auth"
	"github.com/sunstudio/sunstudio/backend-go/internal/collab"
	"github.com/sunstudio/sunstudio/backend-go/internal/config"
	"github.com/sunstudio/sunstudio/backend-go/internal/db"
	"github.com/sunstudio/sunstudio/backend-go/internal/dispatch"
	"github.com/sunstudio/sunstudio/backend-go/internal/media"
	mw "github.com/sunstudio/sunstudio/backend-go/internal/middleware"
	"github.com/sunstudio/sunstudio/backend-go/internal/persist"
	"github.com/sunstudio/sunstudio/backend-go/internal/store"
)

const maxBlobSize = 32 << 20

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()})))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var blobs store.BlobStore
	if cfg.DatabaseURL != "" {
		pool, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			slog.Error("connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := db.Migrate(ctx, pool); err != nil {
			slog.Error("migrate database", "error", err)
			os.Exit(1)
		}
		blobs = store.NewPostgres(pool)
	} else {
		slog.Warn("DATABASE_URL not set, project state is kept in memory")
		blobs = store.NewMemory()
	}

	mediaStore, err := store.NewFileMedia(cfg.MediaDir)
	if err != nil {
		slog.Error("open media store", "error", err)
		os.Exit(1)
	}

	persistence := persist.New(blobs, mediaStore, slog.Default())

	hub := collab.NewHub(persistence, dispatch.Unconfigured{}, collab.Options{
		HistoryLimit:   cfg.HistoryLimit,
		ViewportWidth:  cfg.ViewportWidth,
		ViewportHeight: cfg.ViewportHeight,
		SaveInterval:   cfg.SaveInterval,
		Dispatch: dispatch.Options{
			Concurrency: cfg.ActionConcurrency,
			Timeout:     cfg.ActionTimeout,
		},
	})
	go hub.Run()

	authService := auth.NewService(cfg.JWTSecret).WithAccessKey(cfg.AccessKey)
	authHandler := auth.NewHandler(authService)
	mediaHandler := media.NewHandler(mediaStore)

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(cfg.Origins()))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	r.HandleFunc("/auth/session", authHandler.CreateSession).Methods("POST", "OPTIONS")

	// Media endpoints
	r.HandleFunc("/media/upload", mediaHandler.Upload).Methods("POST", "OPTIONS")
	r.HandleFunc("/media/{id}", mediaHandler.Serve).Methods("GET")

	// Protected API routes
	api := r.PathPrefix("/api").Subrouter()
	api.Use(authService.AuthMiddleware)

	api.HandleFunc("/projects/{projectId}/state/{blob}", getBlob(persistence)).Methods("GET")
	api.HandleFunc("/projects/{projectId}/state/{blob}", putBlob(persistence, hub)).Methods("PUT")
	api.HandleFunc("/projects/{projectId}/scene", getScene(persistence, hub)).Methods("GET")

	// WebSocket endpoint
	origins := mw.OriginHosts(cfg.Origins())
	r.HandleFunc("/ws/project/{projectId}", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, authService, origins)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop hub first so live rooms finish their actions and save
		slog.Info("saving open projects...")
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func getBlob(p *persist.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		v, err := p.LoadBlob(r.Context(), vars["projectId"], vars["blob"])
		if err != nil {
			if errors.Is(err, persist.ErrUnknownBlob) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown blob"})
				return
			}
			slog.Error("load blob", "error", err, "project", vars["projectId"], "blob", vars["blob"])
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
			return
		}
		writeJSON(w, http.StatusOK, v)
	}
}

func putBlob(p *persist.Store, hub *collab.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		if hub.Live(vars["projectId"]) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "project is open in a live session"})
			return
		}

		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBlobSize))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
			return
		}

		err = p.SaveBlob(r.Context(), vars["projectId"], vars["blob"], data)
		switch {
		case errors.Is(err, persist.ErrUnknownBlob):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown blob"})
		case errors.Is(err, persist.ErrInvalidBlob):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case err != nil:
			slog.Error("save blob", "error", err, "project", vars["projectId"], "blob", vars["blob"])
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}
}

// getScene serves the live scene of an open project, or the saved one.
func getScene(p *persist.Store, hub *collab.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projectID := mux.Vars(r)["projectId"]
		if scene, ok := hub.Scene(projectID); ok {
			writeJSON(w, http.StatusOK, scene)
			return
		}
		writeJSON(w, http.StatusOK, p.Load(r.Context(), projectID).Scene)
	}
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, authSvc *auth.Service, origins []string) {
	projectID := mux.Vars(r)["projectId"]

	// Auth via query param, browsers cannot set headers on upgrades
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return
	}

	sess, err := authSvc.ValidateToken(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if sess.ProjectID != projectID {
		http.Error(w, "token is for another project", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: origins,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := collab.NewClient(hub, conn, sess.UserID, sess.DisplayName, projectID, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
