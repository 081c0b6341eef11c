// Package web serves the users UI: it maps HTTP requests onto the
// session's users view and renders the result.
package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/brattlof/roster/internal/app/router"
	"github.com/brattlof/roster/internal/apperrors"
	"github.com/brattlof/roster/internal/live"
	"github.com/brattlof/roster/internal/userview"
	"github.com/brattlof/roster/internal/web/templates"
)

const defaultCookieName = "roster_session"

type Handlers struct {
	sessions   *userview.Sessions
	hub        *live.Hub
	cookieName string
	secure     bool
	logger     *slog.Logger
}

type Option func(*Handlers)

// WithHub enables live refresh through hub.
func WithHub(hub *live.Hub) Option {
	return func(h *Handlers) { h.hub = hub }
}

func WithCookieName(name string) Option {
	return func(h *Handlers) {
		if name != "" {
			h.cookieName = name
		}
	}
}

// WithSecureCookie marks the session cookie Secure.
func WithSecureCookie(secure bool) Option {
	return func(h *Handlers) { h.secure = secure }
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Handlers) { h.logger = l }
}

func New(sessions *userview.Sessions, opts ...Option) *Handlers {
	h := &Handlers{
		sessions:   sessions,
		cookieName: defaultCookieName,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes builds the route table of the UI.
func (h *Handlers) Routes() (*router.Table, error) {
	type route struct {
		method  string
		pattern string
		name    string
		typ     router.RouteType
		handler http.HandlerFunc
	}

	t := router.New()
	add := []route{
		{http.MethodGet, "/", "home", router.RouteTypePage, h.home},
		{http.MethodGet, "/users", "users", router.RouteTypePage, h.mount},
		{http.MethodPost, "/users", "users.create", router.RouteTypeAction, h.create},
		{http.MethodPost, "/users/{id}/edit", "users.edit", router.RouteTypeAction, h.edit},
		{http.MethodPost, "/users/modal/save", "users.save", router.RouteTypeAction, h.save},
		{http.MethodPost, "/users/modal/delete", "users.delete", router.RouteTypeAction, h.delete},
		{http.MethodPost, "/users/modal/close", "users.close", router.RouteTypeAction, h.close},
		{http.MethodGet, "/health", "health", router.RouteTypeAPI, h.health},
	}
	if h.hub != nil {
		add = append(add, route{http.MethodGet, "/users/live", "users.live", router.RouteTypeStream, h.hub.Handler(h.knownSession)})
	}

	for _, r := range add {
		if err := t.Add(r.method, r.pattern, r.name, r.typ, r.handler); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// NotFound renders the 404 page.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, templates.NotFound(r.URL.Path))
}

func (h *Handlers) home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, templates.HomePage())
}

// mount starts a fresh view for the session and loads the list.
func (h *Handlers) mount(w http.ResponseWriter, r *http.Request) {
	id := h.session(w, r)
	var state templates.UsersPageState
	h.sessions.Mount(id, func(v *userview.View) {
		_ = v.Fetch(r.Context())
		state = h.pageState(v)
	})
	h.render(w, r, http.StatusOK, templates.UsersPage(state))
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, true, func(ctx context.Context, v *userview.View) error {
		v.SetName(r.PostFormValue("name"))
		v.SetEmail(r.PostFormValue("email"))
		return v.Create(ctx)
	})
}

func (h *Handlers) edit(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	h.action(w, r, false, func(ctx context.Context, v *userview.View) error {
		u, ok := v.Find(userID)
		if !ok {
			return apperrors.E(apperrors.KindNotFound, "user "+userID+" is not listed")
		}
		v.OpenModal(u)
		return nil
	})
}

func (h *Handlers) save(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, true, func(ctx context.Context, v *userview.View) error {
		v.SetName(r.PostFormValue("name"))
		v.SetEmail(r.PostFormValue("email"))
		return v.Update(ctx)
	})
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, true, func(ctx context.Context, v *userview.View) error {
		if r.PostForm.Has("name") {
			v.SetName(r.PostFormValue("name"))
		}
		if r.PostForm.Has("email") {
			v.SetEmail(r.PostFormValue("email"))
		}
		return v.Delete(ctx)
	})
}

func (h *Handlers) close(w http.ResponseWriter, r *http.Request) {
	h.action(w, r, false, func(_ context.Context, v *userview.View) error {
		v.CloseModal()
		return nil
	})
}

// action runs fn on the session's view and renders the page from the
// resulting state. A session the server does not know yet is loaded first.
func (h *Handlers) action(w http.ResponseWriter, r *http.Request, mutates bool, fn func(context.Context, *userview.View) error) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "malformed form", http.StatusBadRequest)
		return
	}

	id := h.session(w, r)
	ctx := r.Context()

	var (
		state templates.UsersPageState
		err   error
	)
	h.sessions.With(id, func(v *userview.View) {
		if v.Fetches() == 0 {
			_ = v.Fetch(ctx)
		}
		err = fn(ctx, v)
		state = h.pageState(v)
	})

	status := http.StatusOK
	if apperrors.Is(err, apperrors.KindNotFound) {
		status = http.StatusNotFound
		state.Notice = &templates.Notice{Level: string(userview.NoticeError), Message: apperrors.UserMessage(err)}
	}
	if mutates && err == nil && h.hub != nil {
		h.hub.UsersChanged(id)
	}

	h.render(w, r, status, templates.UsersPage(state))
}

func (h *Handlers) health(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"sessions": h.sessions.Len(),
	}
	if h.hub != nil {
		resp["live"] = h.hub.Count()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *Handlers) pageState(v *userview.View) templates.UsersPageState {
	state := templates.UsersPageState{
		Name:  v.Name,
		Email: v.Email,
		Users: make([]templates.UserRow, 0, len(v.List)),
		Live:  h.hub != nil,
	}
	for _, u := range v.List {
		state.Users = append(state.Users, templates.UserRow{ID: u.ID, Name: u.Name, Email: u.Email})
	}
	if u, ok := v.Modal.User(); ok {
		state.Editing = &templates.UserRow{ID: u.ID, Name: u.Name, Email: u.Email}
	}
	if v.Notice != nil {
		state.Notice = &templates.Notice{Level: string(v.Notice.Level), Message: v.Notice.Message}
	}
	return state
}

func (h *Handlers) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		h.logger.Error("Failed to render page", "path", r.URL.Path, "error", err)
	}
}
