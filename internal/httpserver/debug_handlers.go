package httpserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"client_go/internal/domain"
)

type sendRequest struct {
	Content string `json:"content"`
}

type scrollRequest struct {
	Top int `json:"top"`
}

type viewportRequest struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

func handleState(client Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, client.Snapshot())
	}
}

func handleWindow(client Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convID, ok := conversationID(w, r)
		if !ok {
			return
		}
		view, err := client.Window(convID)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleOpen(client Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convID, ok := conversationID(w, r)
		if !ok {
			return
		}
		if err := client.Open(r.Context(), convID); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, client.Snapshot())
	}
}

func handleSend(client Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		msg, err := client.Send(r.Context(), req.Content)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

func handleScroll(client Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req scrollRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if err := client.Scrolled(r.Context(), req.Top); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, client.Snapshot().List)
	}
}

func handleResize(client Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req viewportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Height < 0 || req.Width < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid viewport"})
			return
		}
		client.Resize(req.Height, req.Width)
		writeJSON(w, http.StatusOK, client.Snapshot().List)
	}
}

func conversationID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "conversationID")
	convID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || convID == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
		return 0, false
	}
	return convID, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
