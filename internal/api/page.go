package api

import (
	"embed"
	"net/http"
)

//go:embed static/index.html
var static embed.FS

// page serves the drawing surface and assigns the session cookie.
func (a *API) page(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if _, ok := sessionID(r); !ok {
		http.SetCookie(w, sessionCookie(NewSessionID(a.now())))
	}
	b, err := static.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}
