// Package handler exposes the watch services over the local HTTP API.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/ghnotify/internal/apperror"
	"github.com/sakif/ghnotify/internal/model"
	"github.com/sakif/ghnotify/internal/service"
)

// maxBodyBytes caps request bodies; watch records are tiny.
const maxBodyBytes = 64 << 10

// WatchHandler serves CRUD and mark-read endpoints for one watch kind.
type WatchHandler[T model.Watch[T]] struct {
	svc    *service.WatchService[T]
	key    func(r *http.Request) string
	logger *slog.Logger
}

// NewWatchHandler returns a handler that reads the natural key with key.
func NewWatchHandler[T model.Watch[T]](svc *service.WatchService[T], key func(*http.Request) string, logger *slog.Logger) *WatchHandler[T] {
	return &WatchHandler[T]{svc: svc, key: key, logger: logger}
}

// DevKey reads the natural key of a developer watch from the route.
func DevKey(r *http.Request) string { return chi.URLParam(r, "login") }

// RepoKey reads the natural key of a repository watch from the route.
func RepoKey(r *http.Request) string {
	return chi.URLParam(r, "owner") + "/" + chi.URLParam(r, "name")
}

// HandleList returns every watch of this kind as a JSON array.
func (h *WatchHandler[T]) HandleList(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleGet returns the watch named by the route.
func (h *WatchHandler[T]) HandleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.Get(r.Context(), h.key(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleCreate starts a watch. Only the key in the body is used; a new
// watch always starts with nothing acknowledged.
func (h *WatchHandler[T]) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var body T
	if err := decode(r, &body, false); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.svc.Watch(r.Context(), body.Key())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// HandleUpdate replaces the marker and unread count of the watch named by
// the route. The key in the body, if any, is ignored.
func (h *WatchHandler[T]) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	var body T
	if err := decode(r, &body, false); err != nil {
		h.fail(w, r, err)
		return
	}
	rec := body.WithKey(h.key(r))
	if err := h.svc.Put(r.Context(), rec); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// HandleDelete stops watching the entity named by the route.
func (h *WatchHandler[T]) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unwatch(r.Context(), h.key(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type markReadRequest struct {
	Marker string `json:"marker"`
}

// HandleMarkRead clears the unread count. The body is optional.
func (h *WatchHandler[T]) HandleMarkRead(w http.ResponseWriter, r *http.Request) {
	var body markReadRequest
	if err := decode(r, &body, true); err != nil {
		h.fail(w, r, err)
		return
	}
	rec, err := h.svc.MarkRead(r.Context(), h.key(r), body.Marker)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *WatchHandler[T]) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := statusFor(err); status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, err)
}

func decode(r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.ValidationFailed("body", "invalid JSON body")
	}
	return nil
}

// UnreadResponse is the badge summary across both watch kinds.
type UnreadResponse struct {
	Devs  int `json:"devs"`
	Repos int `json:"repos"`
	Total int `json:"total"`
}

// UnreadHandler serves the combined unread badge count.
type UnreadHandler struct {
	devs   *service.WatchService[model.DevWatch]
	repos  *service.WatchService[model.RepoWatch]
	logger *slog.Logger
}

// NewUnreadHandler returns the badge handler over both watch services.
func NewUnreadHandler(devs *service.WatchService[model.DevWatch], repos *service.WatchService[model.RepoWatch], logger *slog.Logger) *UnreadHandler {
	return &UnreadHandler{devs: devs, repos: repos, logger: logger}
}

// HandleUnread returns the per-kind and total unread counts.
func (h *UnreadHandler) HandleUnread(w http.ResponseWriter, r *http.Request) {
	d, err := h.devs.UnreadTotal(r.Context())
	if err != nil {
		h.logger.Warn("unread: devs failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	rp, err := h.repos.UnreadTotal(r.Context())
	if err != nil {
		h.logger.Warn("unread: repos failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UnreadResponse{Devs: d, Repos: rp, Total: d + rp})
}
