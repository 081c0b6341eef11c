// Package stubapi is a development users REST API speaking the same
// envelope the UI's client expects.
package stubapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/brattlof/roster/internal/apperrors"
	"github.com/brattlof/roster/internal/usersapi"
)

const maxBodyBytes = 1 << 20

// Store is the persistence the API serves from.
type Store interface {
	List(ctx context.Context) ([]usersapi.User, error)
	Get(ctx context.Context, id string) (usersapi.User, error)
	FindByEmail(ctx context.Context, email string) (usersapi.User, error)
	Create(ctx context.Context, in usersapi.Input) (usersapi.User, error)
	Update(ctx context.Context, id string, in usersapi.Input) (usersapi.User, error)
	Delete(ctx context.Context, id string) (int64, error)
}

type envelope struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type Handler struct {
	store  Store
	logger *slog.Logger
}

func New(store Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Router returns the API's routes with CORS open to every origin.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:       []string{"*"},
		AllowedMethods:       []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:       []string{"Accept", "Content-Type"},
		MaxAge:               300,
		OptionsSuccessStatus: http.StatusNoContent,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Route("/users", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: users})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	u, err := h.store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: u})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	switch {
	case in.Name == "":
		writeJSON(w, http.StatusBadRequest, envelope{Message: "add user name"})
		return
	case in.Email == "":
		writeJSON(w, http.StatusBadRequest, envelope{Message: "add user email"})
		return
	}

	existing, err := h.store.FindByEmail(r.Context(), in.Email)
	if err == nil {
		writeJSON(w, http.StatusConflict, envelope{Data: existing, Message: "Email already exists"})
		return
	}
	if !apperrors.Is(err, apperrors.KindNotFound) {
		h.fail(w, r, err)
		return
	}

	u, err := h.store.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("Stub user created", "id", u.ID)
	writeJSON(w, http.StatusCreated, envelope{Data: u})
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	in, err := readInput(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.store.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("Stub user updated", "id", u.ID)
	writeJSON(w, http.StatusOK, envelope{Data: u})
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n, err := h.store.Delete(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("Stub user deleted", "id", id)
	writeJSON(w, http.StatusOK, envelope{Data: map[string]int64{"deleted": n}})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("Stub request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, envelope{Message: apperrors.UserMessage(err)})
}

// readInput decodes the request body. Surrounding whitespace is trimmed and
// an empty body reads as empty fields.
func readInput(r *http.Request) (usersapi.Input, error) {
	var in usersapi.Input
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&in)
	if err != nil && !errors.Is(err, io.EOF) {
		return usersapi.Input{}, apperrors.Wrap(apperrors.KindInvalidInput, "request body is not valid JSON", err)
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	return in, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
