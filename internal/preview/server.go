// Package preview serves converted storage markup over HTTP so documents can
// be inspected locally before publishing. Nothing here talks to the remote
// wiki.
package preview

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/starford/ansuz/internal/converter"
	"github.com/starford/ansuz/internal/parser"
	"github.com/starford/ansuz/internal/storage"
)

// DocumentView is the per-document preview payload.
type DocumentView struct {
	Path    string   `json:"path"`
	Title   string   `json:"title"`
	Markup  string   `json:"markup"`
	Images  []string `json:"images"`
	Missing []string `json:"missing,omitempty"`
}

// Handler holds the preview route handlers.
type Handler struct {
	store storage.Provider
}

// NewRouter creates a chi router with all preview routes mounted.
func NewRouter(store storage.Provider) chi.Router {
	h := &Handler{store: store}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/api/documents", h.ListDocuments)
	r.Get("/api/documents/*", h.GetDocument)
	r.Get("/pages/*", h.GetPageMarkup)

	return r
}

// docPath extracts the document path from the URL wildcard, tolerating
// encoded slashes.
func docPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return ""
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// ListDocuments handles GET /api/documents.
func (h *Handler) ListDocuments(w http.ResponseWriter, _ *http.Request) {
	metas, err := h.store.List("")
	if err != nil {
		slog.Error("list documents failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": metas,
		"total":     len(metas),
	})
}

// GetDocument handles GET /api/documents/* and returns the rendered view.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	view, err := h.render(docPath(r))
	if err != nil {
		if errors.Is(err, errNotFound) {
			writeJSON(w, http.StatusNotFound, errorBody("document not found"))
			return
		}
		slog.Error("render failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// GetPageMarkup handles GET /pages/* and returns the bare storage markup,
// which browsers render well enough for a quick look.
func (h *Handler) GetPageMarkup(w http.ResponseWriter, r *http.Request) {
	view, err := h.render(docPath(r))
	if err != nil {
		if errors.Is(err, errNotFound) {
			http.NotFound(w, r)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(view.Markup))
}

var errNotFound = errors.New("not found")

func (h *Handler) render(path string) (*DocumentView, error) {
	if path == "" {
		return nil, errNotFound
	}
	data, err := h.store.Read(path)
	if err != nil {
		return nil, errNotFound
	}
	doc := parser.Parse(data)
	title := doc.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(path), ".md")
	}

	abs, err := h.store.Abs(path)
	if err != nil {
		return nil, err
	}
	conv := converter.Render(doc.Body, filepath.Dir(abs))

	images := make([]string, len(conv.Images))
	for i, img := range conv.Images {
		images[i] = img.Filename()
	}
	return &DocumentView{
		Path:    path,
		Title:   title,
		Markup:  conv.Markup,
		Images:  images,
		Missing: conv.Missing,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode failed", slog.String("error", err.Error()))
	}
}

type errResponse struct {
	Error string `json:"error"`
}

func errorBody(msg string) errResponse {
	return errResponse{Error: msg}
}
