package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/drakos74/draw-guess/internal/storage"
	"github.com/google/uuid"
)

const (
	// CookieName holds the session id of a browser profile.
	CookieName = "drawGuess_sessionId"
	cookieAge  = 365 * 24 * time.Hour
	suffixLen  = 9
)

// NewSessionID creates a session id of the form session_<unix-millis>_<9 chars>.
func NewSessionID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:suffixLen]
	return fmt.Sprintf("session_%d_%s", now.UnixNano()/int64(time.Millisecond), suffix)
}

// sessionID returns the session id of the request cookie.
func sessionID(r *http.Request) (string, bool) {
	c, err := r.Cookie(CookieName)
	if err != nil {
		return "", false
	}
	if storage.CheckSession(c.Value) != nil {
		return "", false
	}
	return c.Value, true
}

func sessionCookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(cookieAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
