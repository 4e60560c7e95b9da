// Package handler exposes the client over HTTP in the shape of the real
// backend's auth and REST endpoints, so a browser front-end can point at it.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/stevemurr/eden-shim/client"
	"github.com/stevemurr/eden-shim/collection"
)

// Handler holds the server dependencies and registers routes.
type Handler struct {
	client *client.Client
	log    *zap.Logger
	mux    *http.ServeMux
}

// New creates a Handler and wires up all routes.
func New(c *client.Client, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{client: c, log: log, mux: http.NewServeMux()}
	h.routes()
	return h
}

// ServeHTTP makes Handler an http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	h.mux.ServeHTTP(w, r)
	h.log.Debug("request",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Duration("took", time.Since(start)))
}

func (h *Handler) routes() {
	// Health / status
	h.mux.HandleFunc("GET /", h.root)
	h.mux.HandleFunc("GET /health", h.health)

	// --- Auth ---
	h.mux.HandleFunc("GET /auth/v1/session", h.getSession)
	h.mux.HandleFunc("POST /auth/v1/token", h.signIn)
	h.mux.HandleFunc("POST /auth/v1/signup", h.signUp)
	h.mux.HandleFunc("POST /auth/v1/logout", h.signOut)
	h.mux.HandleFunc("GET /auth/v1/events", h.events)

	// --- Collections ---
	h.mux.HandleFunc("GET /rest/v1/{$}", h.listCollections)
	h.mux.HandleFunc("GET /rest/v1/{collection}", h.read)
	h.mux.HandleFunc("POST /rest/v1/{collection}", h.insert)
	h.mux.HandleFunc("PATCH /rest/v1/{collection}", h.update)
}

// ---------- helpers ----------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

// writeStoreError maps an error from the client to a response. The
// not-found condition keeps its code so callers can branch on it.
func (h *Handler) writeStoreError(w http.ResponseWriter, err error) {
	var cerr *collection.Error
	if errors.As(err, &cerr) {
		status := http.StatusBadRequest
		if errors.Is(err, collection.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, cerr)
		return
	}
	h.log.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// ---------- status endpoints ----------

func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	// Only match exact root path
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "Eden Local Backend",
		"mode":    string(h.client.Mode()),
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
