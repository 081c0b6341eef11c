package middleware

import (
	"net/http"
)

// Headers adds, removes and overrides response headers.
type Headers struct {
	add      map[string]string
	remove   []string
	override map[string]string
}

func NewHeaders(add map[string]string, remove []string, override map[string]string) *Headers {
	h := &Headers{
		add:      make(map[string]string),
		remove:   remove,
		override: make(map[string]string),
	}
	for k, v := range add {
		h.add[http.CanonicalHeaderKey(k)] = v
	}
	for k, v := range override {
		h.override[http.CanonicalHeaderKey(k)] = v
	}
	return h
}

func (h *Headers) Name() string  { return "headers" }
func (h *Headers) Priority() int { return 200 }
func (h *Headers) Close() error  { return nil }

func (h *Headers) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, header := range h.remove {
			w.Header().Del(header)
		}

		for key, value := range h.override {
			w.Header().Set(key, value)
		}

		for key, value := range h.add {
			if existing := w.Header().Get(key); existing == "" {
				w.Header().Set(key, value)
			}
		}

		next.ServeHTTP(w, r)
	})
}
