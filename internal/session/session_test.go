package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/drakos74/draw-guess/internal/canvas"
	"github.com/drakos74/draw-guess/internal/concurrent"
	"github.com/drakos74/draw-guess/internal/display"
	"github.com/drakos74/draw-guess/internal/metrics"
	"github.com/drakos74/draw-guess/internal/model"
	"github.com/drakos74/draw-guess/internal/net"
	"github.com/drakos74/draw-guess/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testID = "session_1700000000000_abcdefghi"

type stubClassifier struct {
	mutex      *sync.Mutex
	ready      bool
	probs      []float64
	predictErr error
	trainErr   error
	resetErr   error
	loadErr    error
	blob       []byte
	loaded     []byte
	predicts   int
	trains     []model.Label
	resets     int
	block      chan struct{}
	onPredict  func()
}

func newStub(best int) *stubClassifier {
	return &stubClassifier{
		mutex: new(sync.Mutex),
		ready: true,
		probs: probabilities(best),
		blob:  []byte(`{"modelTopology":{}}`),
	}
}

func probabilities(best int) []float64 {
	pp := make([]float64, model.Classes)
	for i := range pp {
		pp[i] = 0.02
	}
	pp[best] = 0.82
	return pp
}

func (c *stubClassifier) Ready() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.ready
}

func (c *stubClassifier) Predict(_ context.Context, x *model.Tensor) (model.Prediction, error) {
	c.mutex.Lock()
	c.predicts++
	hook := c.onPredict
	err := c.predictErr
	probs := c.probs
	c.mutex.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return model.Prediction{}, err
	}
	if x == nil || x.Len() != model.Side*model.Side {
		return model.Prediction{}, errors.New("unexpected tensor")
	}
	return model.NewPrediction(probs)
}

func (c *stubClassifier) Train(_ context.Context, x *model.Tensor, label model.Label) ([]float64, error) {
	if c.block != nil {
		<-c.block
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.trainErr != nil {
		return nil, c.trainErr
	}
	c.trains = append(c.trains, label)
	return []float64{0.3, 0.2, 0.1}, nil
}

func (c *stubClassifier) Reset() error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.resetErr != nil {
		return c.resetErr
	}
	c.resets++
	c.ready = true
	return nil
}

func (c *stubClassifier) Serialize() ([]byte, error) {
	return c.blob, nil
}

func (c *stubClassifier) Deserialize(b []byte) error {
	if c.loadErr != nil {
		return c.loadErr
	}
	c.loaded = b
	return nil
}

func (c *stubClassifier) predictCount() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.predicts
}

type fixture struct {
	session    *Session
	classifier *stubClassifier
	store      *storage.MockStorage
	recorder   *display.Recorder
}

func newFixture(t *testing.T, classifier *stubClassifier, store storage.Store) (*Session, *display.Recorder) {
	cfg := DefaultConfig()
	// tests drive predictions explicitly
	cfg.Debounce = time.Hour
	recorder := display.NewRecorder()
	s, err := New(testID, cfg, classifier, store, recorder)
	require.NoError(t, err)
	s.WithObserver(metrics.NewMetrics())
	t.Cleanup(s.Close)
	return s, recorder
}

func setup(t *testing.T, best int) fixture {
	classifier := newStub(best)
	store := storage.NewMockStorage()
	s, recorder := newFixture(t, classifier, store)
	return fixture{
		session:    s,
		classifier: classifier,
		store:      store,
		recorder:   recorder,
	}
}

func pointer(x, y float64) canvas.Pointer {
	return canvas.Pointer{
		X: x,
		Y: y,
		Rect: canvas.Rect{
			Width:  canvas.DefaultSize,
			Height: canvas.DefaultSize,
		},
	}
}

func draw(s *Session) {
	s.Down(pointer(140, 40))
	s.Move(pointer(140, 140))
	s.Move(pointer(140, 240))
	s.Up()
}

func lastText(t *testing.T, r *display.Recorder, et display.EventType) string {
	e, ok := r.Last(et)
	require.True(t, ok, "no %s event", et)
	return e.Text
}

func TestSession_ConfirmCorrectPrediction(t *testing.T) {
	f := setup(t, 7)
	draw(f.session)
	assert.Equal(t, AwaitingPrediction, f.session.State())

	require.NoError(t, f.session.Predict(context.Background()))
	assert.Equal(t, Displaying, f.session.State())
	p, ok := f.session.Prediction()
	require.True(t, ok)
	digit, _ := p.Best()
	assert.Equal(t, model.Label(7), digit)
	assert.Equal(t, StatusReady, lastText(t, f.recorder, display.StatusEvent))

	require.NoError(t, f.session.Confirm(context.Background()))
	assert.Equal(t, model.Stats{TotalSamples: 1, CorrectPredictions: 1}, f.session.Stats())
	stored, ok := f.store.Get(testID)
	require.True(t, ok)
	assert.Equal(t, model.Stats{TotalSamples: 1, CorrectPredictions: 1}, stored)
	assert.Equal(t, []model.Label{7}, f.classifier.trains)
	assert.Equal(t, []float64{0.1}, f.session.Losses())
	assert.Equal(t, "✓ Learned! AI confirmed digit 7", lastText(t, f.recorder, display.StatusEvent))
	assert.Equal(t, "✅ Synced", lastText(t, f.recorder, display.SyncEvent))
	assert.Equal(t, Displaying, f.session.State())

	stats, ok := f.recorder.Last(display.StatsEvent)
	require.True(t, ok)
	assert.Equal(t, "100.0%", stats.Stats.Accuracy)

	// the trained tensor is predicted again
	assert.Equal(t, 2, f.classifier.predictCount())
	assert.Len(t, f.recorder.Of(display.PredictionEvent), 2)
}

func TestSession_CorrectWrongPrediction(t *testing.T) {
	f := setup(t, 3)
	draw(f.session)
	require.NoError(t, f.session.Predict(context.Background()))

	require.NoError(t, f.session.Train(context.Background(), 8))
	assert.Equal(t, model.Stats{TotalSamples: 1, CorrectPredictions: 0}, f.session.Stats())
	assert.Equal(t, []model.Label{8}, f.classifier.trains)
	assert.Equal(t, "✓ Corrected! AI learned digit 8", lastText(t, f.recorder, display.StatusEvent))

	stats, ok := f.recorder.Last(display.StatsEvent)
	require.True(t, ok)
	assert.Equal(t, 1, stats.Stats.Samples)
	assert.Equal(t, "0.0%", stats.Stats.Accuracy)
}

func TestSession_TrainValidation(t *testing.T) {
	tests := map[string]struct {
		predict bool
		digit   int
		err     error
	}{
		"negative-label": {
			predict: true,
			digit:   -1,
			err:     model.ErrInvalidLabel,
		},
		"label-too-large": {
			predict: true,
			digit:   10,
			err:     model.ErrInvalidLabel,
		},
		"no-tensor": {
			digit: 4,
			err:   model.ErrNoInput,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := setup(t, 1)
			if tt.predict {
				draw(f.session)
				require.NoError(t, f.session.Predict(context.Background()))
			}
			err := f.session.Train(context.Background(), tt.digit)
			assert.True(t, errors.Is(err, tt.err), "%v", err)
			assert.Empty(t, f.classifier.trains)
			assert.Equal(t, model.Stats{}, f.session.Stats())
		})
	}
}

func TestSession_ConfirmWithoutPrediction(t *testing.T) {
	f := setup(t, 1)
	err := f.session.Confirm(context.Background())
	assert.True(t, errors.Is(err, model.ErrNoInput))
}

func TestSession_BlankCanvas(t *testing.T) {
	f := setup(t, 1)

	err := f.session.Predict(context.Background())
	assert.True(t, errors.Is(err, model.ErrEmptyInput))
	assert.Equal(t, 0, f.classifier.predictCount())
	assert.Empty(t, f.recorder.Of(display.PredictionEvent))
	assert.Equal(t, Idle, f.session.State())
	assert.False(t, f.session.HasInput())

	// a click without movement still paints a dot
	f.session.Down(pointer(10, 10))
	f.session.Up()
	require.NoError(t, f.session.Predict(context.Background()))
	assert.Equal(t, 1, f.classifier.predictCount())
}

func TestSession_Clear(t *testing.T) {
	f := setup(t, 2)
	draw(f.session)
	require.NoError(t, f.session.Predict(context.Background()))
	require.NoError(t, f.session.Train(context.Background(), 5))
	stats := f.session.Stats()

	for i := 0; i < 2; i++ {
		f.session.Clear()
		assert.Equal(t, Idle, f.session.State())
		assert.False(t, f.session.HasInput())
		_, ok := f.session.Prediction()
		assert.False(t, ok)
		assert.Equal(t, stats, f.session.Stats())
	}
	assert.Len(t, f.recorder.Of(display.ClearEvent), 2)

	err := f.session.Predict(context.Background())
	assert.True(t, errors.Is(err, model.ErrEmptyInput))
}

func TestSession_DrawingDropsTensor(t *testing.T) {
	f := setup(t, 2)
	draw(f.session)
	require.NoError(t, f.session.Predict(context.Background()))
	assert.True(t, f.session.HasInput())

	f.session.Down(pointer(50, 50))
	assert.Equal(t, Drawing, f.session.State())
	assert.False(t, f.session.HasInput())

	err := f.session.Train(context.Background(), 2)
	assert.True(t, errors.Is(err, model.ErrNoInput))
}

func TestSession_BusyGate(t *testing.T) {
	f := setup(t, 6)
	draw(f.session)
	require.NoError(t, f.session.Predict(context.Background()))

	f.classifier.block = make(chan struct{})
	done := make(chan error)
	go func() {
		done <- f.session.Train(context.Background(), 6)
	}()
	assert.Eventually(t, func() bool {
		return f.session.State() == Training
	}, time.Second, time.Millisecond)

	tests := map[string]func() error{
		"train": func() error {
			return f.session.Train(context.Background(), 1)
		},
		"confirm": func() error {
			return f.session.Confirm(context.Background())
		},
		"predict": func() error {
			return f.session.Predict(context.Background())
		},
		"reset": func() error {
			return f.session.ResetModel(context.Background())
		},
		"save": func() error {
			return f.session.SaveModel(context.Background())
		},
	}
	for name, call := range tests {
		t.Run(name, func(t *testing.T) {
			assert.True(t, errors.Is(call(), model.ErrBusy))
		})
	}

	close(f.classifier.block)
	require.NoError(t, <-done)
	assert.Equal(t, []model.Label{6}, f.classifier.trains)
	assert.Equal(t, model.Stats{TotalSamples: 1}, f.session.Stats())
	assert.Equal(t, 0, f.classifier.resets)
	assert.Contains(t, f.recorder.Texts(display.StatusEvent), StatusBusy)
}

func TestSession_PersistenceFailure(t *testing.T) {
	classifier := newStub(4)
	store := storage.NewMockStorage().WithFailure(errors.New("offline"))
	s, recorder := newFixture(t, classifier, store)

	s.Load(context.Background())
	assert.Equal(t, "❌ Connection failed", lastText(t, recorder, display.SyncEvent))

	draw(s)
	require.NoError(t, s.Predict(context.Background()))
	require.NoError(t, s.Confirm(context.Background()))

	assert.Equal(t, model.Stats{TotalSamples: 1, CorrectPredictions: 1}, s.Stats())
	assert.Equal(t, "❌ Sync failed", lastText(t, recorder, display.SyncEvent))
	assert.Equal(t, "✓ Learned! AI confirmed digit 4", lastText(t, recorder, display.StatusEvent))
}

func TestSession_UnavailableStore(t *testing.T) {
	classifier := newStub(4)
	s, recorder := newFixture(t, classifier, storage.NewUnavailableStorage(errors.New("missing project")))

	s.Load(context.Background())
	assert.Equal(t, []string{"🔄 Loading...", "❌ Connection failed"}, recorder.Texts(display.SyncEvent))

	draw(s)
	require.NoError(t, s.Predict(context.Background()))
	require.NoError(t, s.Train(context.Background(), 9))
	assert.Equal(t, model.Stats{TotalSamples: 1}, s.Stats())
	assert.Equal(t, "❌ Sync failed", lastText(t, recorder, display.SyncEvent))

	err := s.SaveModel(context.Background())
	assert.True(t, errors.Is(err, storage.UnavailableErr))
	assert.Equal(t, "❌ Save failed", lastText(t, recorder, display.SyncEvent))
}

func TestSession_ModelNotReady(t *testing.T) {
	f := setup(t, 1)
	draw(f.session)
	f.classifier.ready = false

	err := f.session.Predict(context.Background())
	assert.True(t, errors.Is(err, model.ErrModelNotReady))
	assert.Equal(t, StatusNotReady, lastText(t, f.recorder, display.StatusEvent))
	assert.Equal(t, 0, f.classifier.predictCount())

	err = f.session.SaveModel(context.Background())
	assert.True(t, errors.Is(err, model.ErrModelNotReady))
	assert.Equal(t, StatusNoModel, lastText(t, f.recorder, display.StatusEvent))
}

func TestSession_ClassifierFailures(t *testing.T) {
	f := setup(t, 1)
	draw(f.session)

	f.classifier.predictErr = errors.New("nan")
	err := f.session.Predict(context.Background())
	assert.Error(t, err)
	assert.Equal(t, StatusPredictFail, lastText(t, f.recorder, display.StatusEvent))
	assert.Empty(t, f.recorder.Of(display.PredictionEvent))

	f.classifier.predictErr = nil
	require.NoError(t, f.session.Predict(context.Background()))

	f.classifier.trainErr = errors.New("diverged")
	err = f.session.Train(context.Background(), 3)
	assert.Error(t, err)
	assert.Equal(t, StatusTrainFail, lastText(t, f.recorder, display.StatusEvent))
	assert.Equal(t, model.Stats{}, f.session.Stats())
	assert.Equal(t, 0, f.store.Saves)
	assert.Equal(t, Displaying, f.session.State())
}

func TestSession_StalePrediction(t *testing.T) {
	f := setup(t, 1)
	draw(f.session)
	f.classifier.onPredict = f.session.Clear

	require.NoError(t, f.session.Predict(context.Background()))
	_, ok := f.session.Prediction()
	assert.False(t, ok)
	assert.False(t, f.session.HasInput())
	assert.Equal(t, Idle, f.session.State())
	assert.Empty(t, f.recorder.Of(display.PredictionEvent))
}

func TestSession_ResetModel(t *testing.T) {
	f := setup(t, 5)
	f.store.Stats[testID] = model.Stats{TotalSamples: 9, CorrectPredictions: 4}
	f.store.Models[testID] = []byte("{}")
	f.session.Load(context.Background())
	assert.Equal(t, model.Stats{TotalSamples: 9, CorrectPredictions: 4}, f.session.Stats())

	draw(f.session)
	require.NoError(t, f.session.Predict(context.Background()))
	require.NoError(t, f.session.Train(context.Background(), 4))
	assert.Len(t, f.session.Losses(), 1)
	require.NoError(t, f.session.ResetModel(context.Background()))

	assert.Equal(t, 1, f.classifier.resets)
	assert.Equal(t, model.Stats{}, f.session.Stats())
	assert.Empty(t, f.session.Losses())
	stored, _ := f.store.Get(testID)
	assert.Equal(t, model.Stats{}, stored)
	assert.Empty(t, f.store.Models)
	assert.Equal(t, Idle, f.session.State())
	assert.False(t, f.session.HasInput())
	assert.Equal(t, StatusReset, lastText(t, f.recorder, display.StatusEvent))

	// a missing saved model is not an error
	require.NoError(t, f.session.ResetModel(context.Background()))
	assert.Equal(t, 2, f.classifier.resets)
}

func TestSession_ResetFailure(t *testing.T) {
	f := setup(t, 5)
	f.store.Stats[testID] = model.Stats{TotalSamples: 2, CorrectPredictions: 1}
	f.session.Load(context.Background())
	f.classifier.resetErr = errors.New("no memory")

	assert.Error(t, f.session.ResetModel(context.Background()))
	assert.Equal(t, model.Stats{TotalSamples: 2, CorrectPredictions: 1}, f.session.Stats())
	assert.Equal(t, StatusResetFail, lastText(t, f.recorder, display.StatusEvent))
}

func TestSession_Load(t *testing.T) {
	tests := map[string]struct {
		stats  model.Stats
		model  []byte
		status string
	}{
		"fresh": {},
		"stats-only": {
			stats: model.Stats{TotalSamples: 3, CorrectPredictions: 1},
		},
		"stats-and-model": {
			stats:  model.Stats{TotalSamples: 3, CorrectPredictions: 3},
			model:  []byte(`{"weightSpecs":[]}`),
			status: StatusModelLoaded,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f := setup(t, 0)
			f.store.Stats[testID] = tt.stats
			if tt.model != nil {
				f.store.Models[testID] = tt.model
			}
			f.recorder.Reset()

			f.session.Load(context.Background())
			assert.Equal(t, tt.stats, f.session.Stats())
			assert.Equal(t, tt.model, f.classifier.loaded)
			assert.Equal(t, []string{"🔄 Loading...", "✅ Connected"}, f.recorder.Texts(display.SyncEvent))
			if tt.status != "" {
				assert.Equal(t, tt.status, lastText(t, f.recorder, display.StatusEvent))
			} else {
				assert.Empty(t, f.recorder.Of(display.StatusEvent))
			}
		})
	}
}

func TestSession_LoadCorruptModel(t *testing.T) {
	f := setup(t, 0)
	f.store.Models[testID] = []byte("garbage")
	f.classifier.loadErr = net.ErrMalformedWeights

	f.session.Load(context.Background())
	assert.Nil(t, f.classifier.loaded)
	assert.Empty(t, f.recorder.Texts(display.StatusEvent)[1:])
	assert.Equal(t, "✅ Connected", lastText(t, f.recorder, display.SyncEvent))
}

func TestSession_SaveModel(t *testing.T) {
	f := setup(t, 0)
	require.NoError(t, f.session.SaveModel(context.Background()))
	assert.Equal(t, f.classifier.blob, f.store.Models[testID])
	assert.Equal(t, StatusSaved, lastText(t, f.recorder, display.StatusEvent))
	assert.Equal(t, []string{"🔄 Uploading...", "✅ Model saved"}, f.recorder.Texts(display.SyncEvent))

	f.store.WithFailure(errors.New("quota"))
	assert.Error(t, f.session.SaveModel(context.Background()))
	assert.Equal(t, StatusSaveFail, lastText(t, f.recorder, display.StatusEvent))
	assert.Equal(t, "❌ Save failed", lastText(t, f.recorder, display.SyncEvent))
}

func TestSession_SaveModelLocal(t *testing.T) {
	classifier := newStub(0)
	s, _ := newFixture(t, classifier, storage.StatsOnly{Store: storage.NewMockStorage()})
	err := s.SaveModel(context.Background())
	assert.True(t, errors.Is(err, ErrNoModelStore))
}

func TestSession_Debounce(t *testing.T) {
	classifier := newStub(8)
	cfg := DefaultConfig()
	cfg.Debounce = 20 * time.Millisecond
	assertion := concurrent.NewAssertion(1)
	recorder := display.NewRecorder().Notify(func(e display.Event) {
		if e.Type == display.PredictionEvent {
			assertion.Expect(e.Prediction.Digit)
		}
	})
	s, err := New(testID, cfg, classifier, storage.NewMockStorage(), recorder)
	require.NoError(t, err)
	s.WithObserver(metrics.NewMetrics())
	defer s.Close()

	// strokes in quick succession yield a single prediction
	for i := 0; i < 3; i++ {
		s.Down(pointer(100+float64(i)*20, 60))
		s.Move(pointer(100+float64(i)*20, 200))
		s.Up()
	}
	values := assertion.Assert(t, time.Second)
	assert.Equal(t, []interface{}{8}, values)
	assert.Equal(t, 1, classifier.predictCount())
	assert.Equal(t, Displaying, s.State())

	// a new stroke cancels the pending prediction
	s.Down(pointer(20, 20))
	s.Up()
	s.Down(pointer(30, 30))
	s.Clear()
	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, 1, classifier.predictCount())
}

func TestSession_StatsInvariant(t *testing.T) {
	f := setup(t, 3)
	rng := rand.New(rand.NewSource(42))
	draw(f.session)
	require.NoError(t, f.session.Predict(context.Background()))

	expected := model.Stats{}
	for i := 0; i < 50; i++ {
		if rng.Intn(2) == 0 {
			require.NoError(t, f.session.Confirm(context.Background()))
			expected = expected.Record(true)
		} else {
			require.NoError(t, f.session.Train(context.Background(), rng.Intn(model.Classes)))
			expected = expected.Record(false)
		}
		stats := f.session.Stats()
		require.NoError(t, stats.Validate())
		assert.Equal(t, expected, stats)
	}
	stored, _ := f.store.Get(testID)
	assert.Equal(t, expected, stored)
}

func TestSession_InvalidID(t *testing.T) {
	_, err := New("../../etc", DefaultConfig(), newStub(0), storage.NewMockStorage(), nil)
	assert.True(t, errors.Is(err, storage.InvalidKeyErr))
}

func TestSession_Network(t *testing.T) {
	n, err := net.New(net.DefaultConfig().WithSeed(7))
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Debounce = time.Hour
	store := storage.NewMockStorage()
	s, err := New(testID, cfg, n, store, display.NewRecorder())
	require.NoError(t, err)
	s.WithObserver(metrics.NewMetrics())
	defer s.Close()

	draw(s)
	require.NoError(t, s.Predict(context.Background()))
	require.NoError(t, s.Train(context.Background(), 1))
	require.NoError(t, s.SaveModel(context.Background()))
	assert.NotEmpty(t, store.Models[testID])
	assert.Equal(t, model.Stats{TotalSamples: 1}, s.Stats())
}
