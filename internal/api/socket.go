package api

import (
	"net/http"
	"time"

	"github.com/drakos74/draw-guess/internal/session"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 5 * time.Second
	maxMessage = 4096
)

// socket streams pointer events from the browser and display events back.
func (a *API) socket(w http.ResponseWriter, r *http.Request) {
	header := http.Header{}
	id, ok := sessionID(r)
	if !ok {
		id = NewSessionID(a.now())
		header.Add("Set-Cookie", sessionCookie(id).String())
	}
	s, err := a.registry.Get(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), StatusCode(err))
		return
	}
	events, cancel, err := s.Subscribe()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer cancel()

	conn, err := a.upgrader.Upgrade(w, r, header)
	if err != nil {
		log.Error().Err(err).Str("session", id).Msg("could not upgrade connection")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxMessage)
	log.Info().Str("session", id).Str("remote", r.RemoteAddr).Msg("opened stream")

	go func() {
		for e := range events {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(e); err != nil {
				log.Debug().Err(err).Str("session", id).Msg("could not write event")
				_ = conn.Close()
				return
			}
		}
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
	}()

	for {
		var cmd Command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Str("session", id).Msg("stream closed")
			}
			return
		}
		if err := cmd.Validate(OneOf(Down, Move, Up), Positioned()); err != nil {
			log.Warn().Err(err).Str("session", id).Msg("ignored command")
			continue
		}
		apply(s, cmd)
	}
}

func apply(s *session.Session, cmd Command) {
	switch cmd.Type {
	case Down:
		s.Down(cmd.Pointer())
	case Move:
		s.Move(cmd.Pointer())
	case Up:
		s.Up()
	}
}
