package auth

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type sessionRequest struct {
	ProjectID   string `json:"projectId"`
	DisplayName string `json:"displayName"`
	AccessKey   string `json:"accessKey"`
}

func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if err := h.service.CheckAccessKey(req.AccessKey); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid access key"})
		return
	}

	result, err := h.service.Issue(req.ProjectID, req.DisplayName)
	if err != nil {
		if errors.Is(err, ErrMissingProject) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "projectId is required"})
			return
		}
		slog.Error("create session failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
