package web

import (
	"net/http"

	"github.com/brattlof/roster/internal/userview"
)

// session returns the request's session id, issuing a cookie for a new one
// when the browser has none or sends an id this server does not hold.
func (h *Handlers) session(w http.ResponseWriter, r *http.Request) string {
	if id := h.knownSession(r); id != "" {
		return id
	}

	id := userview.NewID()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return id
}

// knownSession returns the cookie's session id when it names a live session.
func (h *Handlers) knownSession(r *http.Request) string {
	c, err := r.Cookie(h.cookieName)
	if err != nil || !h.sessions.Has(c.Value) {
		return ""
	}
	return c.Value
}
