package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/drakos74/draw-guess/internal/canvas"
	"github.com/drakos74/draw-guess/internal/display"
	"github.com/drakos74/draw-guess/internal/metrics"
	"github.com/drakos74/draw-guess/internal/model"
	"github.com/drakos74/draw-guess/internal/server"
	"github.com/drakos74/draw-guess/internal/session"
	"github.com/drakos74/draw-guess/internal/storage"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "session_1700000000000_abcdefghi"

var idPattern = regexp.MustCompile(`^session_\d+_[0-9a-f]{9}$`)

// fixed always predicts the same digit.
type fixed struct {
	digit int
}

func (f fixed) Ready() bool {
	return true
}

func (f fixed) Predict(_ context.Context, _ *model.Tensor) (model.Prediction, error) {
	pp := make([]float64, model.Classes)
	for i := range pp {
		pp[i] = 0.05
	}
	pp[f.digit] = 0.55
	return model.NewPrediction(pp)
}

func (f fixed) Train(_ context.Context, _ *model.Tensor, _ model.Label) ([]float64, error) {
	return []float64{0.1}, nil
}

func (f fixed) Reset() error {
	return nil
}

func (f fixed) Serialize() ([]byte, error) {
	return []byte("{}"), nil
}

func (f fixed) Deserialize(_ []byte) error {
	return nil
}

func newAPI(t *testing.T, store storage.Store, debounce time.Duration) (*session.Registry, http.Handler) {
	cfg := session.DefaultConfig()
	cfg.Debounce = debounce
	registry := session.NewRegistry(func(id string) (*session.Session, error) {
		s, err := session.New(id, cfg, fixed{digit: 7}, store, display.NewBroadcaster())
		if err != nil {
			return nil, err
		}
		return s.WithObserver(metrics.NewMetrics()), nil
	}).WithObserver(metrics.NewMetrics())
	t.Cleanup(registry.Close)
	srv := New(registry).Register(server.NewServer("test", 0).Add(server.Live()))
	return registry, srv.Handler()
}

func pointerAt(x, y float64) canvas.Pointer {
	return Command{
		Type: Down,
		X:    x,
		Y:    y,
		Rect: canvas.Rect{Width: canvas.DefaultSize, Height: canvas.DefaultSize},
	}.Pointer()
}

func call(t *testing.T, handler http.Handler, method, path, body string, cookie bool) (int, StateResponse) {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	if cookie {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: testID})
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	var resp StateResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w.Code, resp
}

func TestNewSessionID(t *testing.T) {
	now := time.Unix(1700000000, 0)
	id := NewSessionID(now)
	assert.Regexp(t, idPattern, id)
	assert.True(t, strings.HasPrefix(id, "session_1700000000000_"))
	assert.NotEqual(t, id, NewSessionID(now))
	assert.NoError(t, storage.CheckSession(id))
}

func TestPage(t *testing.T) {
	_, handler := newAPI(t, storage.NewMockStorage(), time.Hour)

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "drawCanvas")
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, CookieName, cookies[0].Name)
	assert.Regexp(t, idPattern, cookies[0].Value)

	r := httptest.NewRequest("GET", "/", nil)
	r.AddCookie(cookies[0])
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Result().Cookies())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/favicon.ico", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoutes_NoSession(t *testing.T) {
	_, handler := newAPI(t, storage.NewMockStorage(), time.Hour)
	code, _ := call(t, handler, "POST", "/api/clear", "", false)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestRoutes(t *testing.T) {
	store := storage.NewMockStorage()
	registry, handler := newAPI(t, store, time.Hour)

	code, resp := call(t, handler, "GET", "/api/stats", "", true)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, testID, resp.Session)
	assert.Equal(t, "--", resp.Accuracy)

	code, _ = call(t, handler, "POST", "/api/predict", "", true)
	assert.Equal(t, http.StatusPreconditionFailed, code)
	code, _ = call(t, handler, "POST", "/api/confirm", "", true)
	assert.Equal(t, http.StatusPreconditionFailed, code)

	s, err := registry.Get(context.Background(), testID)
	require.NoError(t, err)
	s.Down(pointerAt(40, 40))
	s.Move(pointerAt(40, 120))
	s.Up()

	code, resp = call(t, handler, "POST", "/api/predict", "", true)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, resp.Prediction)
	assert.Equal(t, 7, resp.Prediction.Digit)
	assert.Equal(t, "displaying", resp.State)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		code   int
		stats  model.Stats
	}{
		{name: "missing-digit", method: "POST", path: "/api/train", body: `{}`, code: http.StatusBadRequest},
		{name: "invalid-digit", method: "POST", path: "/api/train", body: `{"digit":12}`, code: http.StatusBadRequest},
		{name: "malformed", method: "POST", path: "/api/train", body: `{"digit":`, code: http.StatusBadRequest},
		{name: "wrong-method", method: "GET", path: "/api/train", code: http.StatusMethodNotAllowed},
		{name: "correct", method: "POST", path: "/api/train", body: `{"digit":8}`, code: http.StatusOK,
			stats: model.Stats{TotalSamples: 1}},
		{name: "confirm", method: "POST", path: "/api/confirm", code: http.StatusOK,
			stats: model.Stats{TotalSamples: 2, CorrectPredictions: 1}},
		{name: "save", method: "POST", path: "/api/save", code: http.StatusOK,
			stats: model.Stats{TotalSamples: 2, CorrectPredictions: 1}},
		{name: "stats", method: "GET", path: "/api/stats", code: http.StatusOK,
			stats: model.Stats{TotalSamples: 2, CorrectPredictions: 1}},
		{name: "clear", method: "POST", path: "/api/clear", code: http.StatusOK,
			stats: model.Stats{TotalSamples: 2, CorrectPredictions: 1}},
		{name: "train-after-clear", method: "POST", path: "/api/train", body: `{"digit":1}`, code: http.StatusPreconditionFailed},
		{name: "reset", method: "POST", path: "/api/reset", code: http.StatusOK},
	}
	// the steps build on each other
	for _, tt := range tests {
		code, resp := call(t, handler, tt.method, tt.path, tt.body, true)
		assert.Equal(t, tt.code, code, tt.name)
		if code == http.StatusOK {
			assert.Equal(t, tt.stats, resp.Stats, tt.name)
			assert.Len(t, resp.Losses, tt.stats.TotalSamples, tt.name)
		}
	}

	stored, _ := store.Get(testID)
	assert.Equal(t, model.Stats{}, stored)
	assert.Empty(t, store.Models)
}

func TestRoutes_LocalSave(t *testing.T) {
	_, handler := newAPI(t, storage.StatsOnly{Store: storage.NewMockStorage()}, time.Hour)
	code, _ := call(t, handler, "POST", "/api/save", "", true)
	assert.Equal(t, http.StatusNotImplemented, code)
}

func TestStatusCode(t *testing.T) {
	tests := map[error]int{
		nil:                      http.StatusOK,
		model.ErrBusy:            http.StatusConflict,
		model.ErrInvalidLabel:    http.StatusBadRequest,
		storage.InvalidKeyErr:    http.StatusBadRequest,
		model.ErrModelNotReady:   http.StatusPreconditionFailed,
		model.ErrNoInput:         http.StatusPreconditionFailed,
		model.ErrEmptyInput:      http.StatusPreconditionFailed,
		session.ErrNoModelStore:  http.StatusNotImplemented,
		storage.UnavailableErr:   http.StatusServiceUnavailable,
		errors.New("unexpected"): http.StatusInternalServerError,
	}
	for err, code := range tests {
		assert.Equal(t, code, StatusCode(err), "%v", err)
		if err != nil {
			assert.Equal(t, code, StatusCode(fmt.Errorf("wrapped: %w", err)))
		}
	}
}

func TestSocket(t *testing.T) {
	_, handler := newAPI(t, storage.NewMockStorage(), 10*time.Millisecond)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	header := http.Header{}
	header.Add("Cookie", (&http.Cookie{Name: CookieName, Value: testID}).String())
	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", header)
	require.NoError(t, err)
	defer conn.Close()

	rect := map[string]float64{"left": 0, "top": 0, "width": 140, "height": 140}
	for _, msg := range []map[string]interface{}{
		{"type": "down", "x": 70, "y": 20, "rect": rect},
		{"type": "move", "x": 70, "y": 70, "rect": rect},
		{"type": "bogus"},
		{"type": "move", "x": 70, "y": 120, "rect": rect},
		{"type": "up"},
	} {
		require.NoError(t, conn.WriteJSON(msg))
	}

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var e display.Event
		require.NoError(t, conn.ReadJSON(&e))
		if e.Type == display.PredictionEvent {
			require.NotNil(t, e.Prediction)
			assert.Equal(t, 7, e.Prediction.Digit)
			assert.Len(t, e.Prediction.Bars, model.Classes)
			return
		}
	}
}

func TestSocket_NewSession(t *testing.T) {
	registry, handler := newAPI(t, storage.NewMockStorage(), time.Hour)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Regexp(t, idPattern, cookies[0].Value)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var e display.Event
	require.NoError(t, conn.ReadJSON(&e))
	assert.Equal(t, 1, registry.Len())
}
