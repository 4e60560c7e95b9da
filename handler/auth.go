package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/stevemurr/eden-shim/auth"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	User    *auth.User    `json:"user"`
	Session *auth.Session `json:"session"`
}

type authEvent struct {
	Event   auth.Event    `json:"event"`
	Session *auth.Session `json:"session"`
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.client.Auth().GetSession(r.Context())
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s})
}

func (h *Handler) signIn(w http.ResponseWriter, r *http.Request) {
	h.startSession(w, r, h.client.Auth().SignIn)
}

func (h *Handler) signUp(w http.ResponseWriter, r *http.Request) {
	h.startSession(w, r, h.client.Auth().SignUp)
}

type startFunc func(ctx context.Context, email, password string) (*auth.User, *auth.Session, error)

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request, start startFunc) {
	var c credentials
	if err := readJSON(r, &c); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	user, session, err := start(r.Context(), c.Email, c.Password)
	if errors.Is(err, auth.ErrEmailRequired) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{User: user, Session: session})
}

func (h *Handler) signOut(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Auth().SignOut(r.Context()); err != nil {
		h.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// eventBuffer is how many undelivered events one stream may hold. A client
// that falls further behind is disconnected instead of missing a transition;
// it reconnects and starts again from the replayed current state.
var eventBuffer = 16

// events streams auth state changes as Server-Sent Events. The first event
// replays the current state. The subscription ends with the request, or
// when the client stops keeping up.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	// The fan-out is synchronous and must never block on a slow client.
	ch := make(chan authEvent, eventBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	sub := h.client.Auth().OnAuthStateChange(func(event auth.Event, session *auth.Session) {
		select {
		case ch <- authEvent{Event: event, Session: session}:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer sub.Unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-overflow:
			h.log.Warn("closing auth event stream, client fell behind")
			return
		case ev := <-ch:
			b, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Event, b); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
