package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/drakos74/draw-guess/internal/buffer"
	"github.com/drakos74/draw-guess/internal/canvas"
	"github.com/drakos74/draw-guess/internal/concurrent"
	"github.com/drakos74/draw-guess/internal/display"
	"github.com/drakos74/draw-guess/internal/emoji"
	"github.com/drakos74/draw-guess/internal/metrics"
	"github.com/drakos74/draw-guess/internal/model"
	"github.com/drakos74/draw-guess/internal/storage"
	"github.com/rs/zerolog/log"
)

const (
	opPredict   = "predict"
	opTrain     = "train"
	opReset     = "reset"
	opSave      = "save"
	opLoadStats = "load_stats"
	opSaveStats = "save_stats"
	opLoadModel = "load_model"
	opSaveModel = "save_model"
	opDelete    = "delete_model"

	kindConfirm = "confirm"
	kindCorrect = "correct"

	lossHistory = 20
)

var (
	// ErrNoModelStore is returned by SaveModel when the store cannot keep models.
	ErrNoModelStore = errors.New("store does not persist models")
	// ErrNoSubscription is returned when the display does not stream events.
	ErrNoSubscription = errors.New("display does not stream events")
)

// Config holds the session settings.
type Config struct {
	Debounce time.Duration `json:"debounce"`
	Width    int           `json:"width"`
	Height   int           `json:"height"`
}

// DefaultConfig returns the default session settings.
func DefaultConfig() Config {
	return Config{
		Debounce: 300 * time.Millisecond,
		Width:    canvas.DefaultSize,
		Height:   canvas.DefaultSize,
	}
}

// Session is the feedback loop of one browser profile.
type Session struct {
	id       string
	mutex    *sync.Mutex
	state    State
	epoch    uint64
	raster   *canvas.Raster
	tensor   *model.Tensor
	current  *model.Prediction
	stats    model.Stats
	losses   *buffer.Buffer
	gate     *concurrent.Gate
	debounce *concurrent.Debounce

	classifier Classifier
	store      storage.Store
	display    display.Display
	observer   *metrics.Metrics
}

// New creates a new session for the given id.
func New(id string, cfg Config, classifier Classifier, store storage.Store, d display.Display) (*Session, error) {
	if err := storage.CheckSession(id); err != nil {
		return nil, err
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid canvas size %dx%d", cfg.Width, cfg.Height)
	}
	if d == nil {
		d = display.Void{}
	}
	s := &Session{
		id:         id,
		mutex:      new(sync.Mutex),
		state:      Idle,
		raster:     canvas.NewRaster(cfg.Width, cfg.Height),
		losses:     buffer.NewBuffer(lossHistory),
		gate:       new(concurrent.Gate),
		classifier: classifier,
		store:      store,
		display:    d,
		observer:   metrics.Observer,
	}
	s.debounce = concurrent.NewDebounce(cfg.Debounce, s.onDebounce)
	if classifier.Ready() {
		d.Status(StatusStart, display.Ready)
	}
	return s, nil
}

// WithObserver replaces the metrics collector.
func (s *Session) WithObserver(observer *metrics.Metrics) *Session {
	s.observer = observer
	return s
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) State() State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

func (s *Session) Stats() model.Stats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// Losses returns the final loss of the most recent trainings, oldest first.
func (s *Session) Losses() []float64 {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.losses.Get()
}

// Prediction returns the displayed prediction, if any.
func (s *Session) Prediction() (model.Prediction, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.current == nil {
		return model.Prediction{}, false
	}
	return *s.current, true
}

// HasInput reports if there is a tensor to train on.
func (s *Session) HasInput() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.tensor != nil
}

// Subscribe streams the display events of the session.
func (s *Session) Subscribe() (<-chan display.Event, func(), error) {
	sub, ok := s.display.(display.Subscriber)
	if !ok {
		return nil, nil, ErrNoSubscription
	}
	events, cancel := sub.Subscribe()
	return events, cancel, nil
}

// Close stops any pending prediction.
func (s *Session) Close() {
	s.debounce.Stop()
}

// Load restores the stats and, for model stores, the saved model.
func (s *Session) Load(ctx context.Context) {
	s.display.Sync(emoji.Pending(SyncLoading))

	stats, err := s.store.LoadStats(ctx, s.id)
	s.observer.Persistence(opLoadStats, metrics.Outcome(err))
	if err == nil {
		err = stats.Validate()
	}
	if err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("could not load stats")
		s.display.Sync(emoji.Sync(false, SyncConnectionFail))
		return
	}
	s.mutex.Lock()
	s.stats = stats
	s.mutex.Unlock()

	if ms, ok := s.store.(storage.ModelStore); ok {
		s.loadModel(ctx, ms)
	}

	s.display.Stats(stats)
	s.display.Sync(emoji.Sync(true, SyncConnected))
	log.Info().
		Str("session", s.id).
		Int("samples", stats.TotalSamples).
		Int("correct", stats.CorrectPredictions).
		Msg("loaded session")
}

func (s *Session) loadModel(ctx context.Context, ms storage.ModelStore) {
	if !s.gate.Acquire() {
		s.observer.Busy(opLoadModel)
		return
	}
	defer s.gate.Release()

	b, err := ms.LoadModel(ctx, s.id)
	if errors.Is(err, storage.NotFoundErr) {
		s.observer.Persistence(opLoadModel, metrics.Missing)
		log.Info().Str("session", s.id).Msg("no saved model, using fresh model")
		return
	}
	s.observer.Persistence(opLoadModel, metrics.Outcome(err))
	if err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("could not load model")
		return
	}
	if err := s.classifier.Deserialize(b); err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("could not restore model")
		return
	}
	s.display.Status(StatusModelLoaded, display.Ready)
}

// Down starts a stroke.
func (s *Session) Down(p canvas.Pointer) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.debounce.Stop()
	s.epoch++
	s.tensor = nil
	s.raster.Begin(s.raster.Map(p))
	s.state = Drawing
}

// Move extends the active stroke.
func (s *Session) Move(p canvas.Pointer) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.raster.Move(s.raster.Map(p))
}

// Up ends the active stroke and arms the prediction.
func (s *Session) Up() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.raster.End() {
		s.state = AwaitingPrediction
		s.debounce.Trigger()
	}
}

func (s *Session) onDebounce() {
	err := s.Predict(context.Background())
	switch {
	case err == nil:
	case errors.Is(err, model.ErrBusy), errors.Is(err, model.ErrEmptyInput):
		log.Debug().Err(err).Str("session", s.id).Msg("skipped prediction")
	default:
		log.Warn().Err(err).Str("session", s.id).Msg("prediction failed")
	}
}

// Predict runs a prediction cycle on the current raster.
// A blank raster returns ErrEmptyInput without calling the classifier.
func (s *Session) Predict(ctx context.Context) error {
	if !s.gate.Acquire() {
		s.observer.Busy(opPredict)
		return model.ErrBusy
	}
	defer s.gate.Release()

	s.mutex.Lock()
	if !s.classifier.Ready() {
		s.state = Idle
		s.mutex.Unlock()
		s.observer.Prediction(metrics.Failure)
		s.display.Status(StatusNotReady, display.Error)
		return model.ErrModelNotReady
	}
	if s.raster.IsEmpty() {
		s.state = Idle
		s.mutex.Unlock()
		s.observer.Prediction(metrics.Skipped)
		return model.ErrEmptyInput
	}
	x := canvas.Preprocess(s.raster.Image())
	s.tensor = x
	epoch := s.epoch
	s.mutex.Unlock()

	s.display.Status(StatusAnalyzing, display.Analyzing)
	start := time.Now()
	p, err := s.classifier.Predict(ctx, x)
	s.observer.Since(opPredict, start)

	s.mutex.Lock()
	defer s.mutex.Unlock()
	if epoch != s.epoch {
		// the canvas changed while predicting
		s.observer.Prediction(metrics.Skipped)
		return nil
	}
	if err != nil {
		s.state = Idle
		s.observer.Prediction(metrics.Failure)
		s.display.Status(StatusPredictFail, display.Error)
		return err
	}
	s.current = &p
	s.state = Displaying
	s.observer.Prediction(metrics.Success)
	s.display.Prediction(p)
	s.display.Status(StatusReady, display.Ready)

	digit, confidence := p.Best()
	log.Debug().
		Str("session", s.id).
		Int("digit", int(digit)).
		Float64("confidence", confidence).
		Float64("duration", time.Since(start).Seconds()).
		Msg("predicted digit")
	return nil
}

// Train corrects the model with the given digit.
func (s *Session) Train(ctx context.Context, digit int) error {
	label, err := model.NewLabel(digit)
	if err != nil {
		return err
	}
	return s.train(ctx, label, false)
}

// Confirm trains the model on its own prediction.
func (s *Session) Confirm(ctx context.Context) error {
	p, ok := s.Prediction()
	if !ok {
		return fmt.Errorf("nothing to confirm: %w", model.ErrNoInput)
	}
	label, _ := p.Best()
	return s.train(ctx, label, true)
}

func (s *Session) train(ctx context.Context, label model.Label, confirmed bool) error {
	if !s.gate.Acquire() {
		s.observer.Busy(opTrain)
		s.display.Status(StatusBusy, display.Loading)
		return model.ErrBusy
	}
	defer s.gate.Release()

	s.mutex.Lock()
	if !s.classifier.Ready() {
		s.mutex.Unlock()
		s.display.Status(StatusNotReady, display.Error)
		return model.ErrModelNotReady
	}
	if s.tensor == nil {
		s.mutex.Unlock()
		return fmt.Errorf("nothing to train on: %w", model.ErrNoInput)
	}
	x := s.tensor.Clone()
	epoch := s.epoch
	s.state = Training
	s.mutex.Unlock()

	s.display.Status(StatusLearning, display.Analyzing)
	start := time.Now()
	loss, err := s.classifier.Train(ctx, x, label)
	s.observer.Since(opTrain, start)
	if err != nil {
		s.mutex.Lock()
		if epoch == s.epoch {
			s.state = Displaying
		}
		s.mutex.Unlock()
		log.Error().Err(err).Str("session", s.id).Int("digit", int(label)).Msg("training failed")
		s.display.Status(StatusTrainFail, display.Error)
		return err
	}

	kind := kindCorrect
	msg := StatusCorrected
	if confirmed {
		kind = kindConfirm
		msg = StatusConfirmed
	}
	s.observer.Training(kind)

	s.mutex.Lock()
	s.stats = s.stats.Record(confirmed)
	stats := s.stats
	if len(loss) > 0 {
		s.losses.Push(loss[len(loss)-1])
	}
	s.mutex.Unlock()

	s.saveStats(ctx, stats)
	s.display.Stats(stats)
	s.display.Status(fmt.Sprintf(msg, label), display.Ready)

	ev := log.Info().
		Str("session", s.id).
		Int("digit", int(label)).
		Bool("confirmed", confirmed).
		Int("samples", stats.TotalSamples)
	if len(loss) > 0 {
		ev = ev.Float64("loss", loss[len(loss)-1])
	}
	ev.Msg("trained on digit")

	s.repredict(ctx, x, epoch)
	return nil
}

// repredict shows the updated model output for the trained tensor
// and keeps the training status on screen.
func (s *Session) repredict(ctx context.Context, x *model.Tensor, epoch uint64) {
	p, err := s.classifier.Predict(ctx, x)
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if epoch != s.epoch {
		return
	}
	s.state = Displaying
	if err != nil {
		s.observer.Prediction(metrics.Failure)
		log.Warn().Err(err).Str("session", s.id).Msg("could not refresh prediction")
		return
	}
	s.observer.Prediction(metrics.Success)
	s.current = &p
	s.display.Prediction(p)
}

func (s *Session) saveStats(ctx context.Context, stats model.Stats) {
	err := s.store.SaveStats(ctx, s.id, stats)
	s.observer.Persistence(opSaveStats, metrics.Outcome(err))
	if err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("could not save stats")
		s.display.Sync(emoji.Sync(false, SyncFailed))
		return
	}
	s.display.Sync(emoji.Sync(true, SyncSynced))
}

// Clear resets the canvas and the current prediction. The stats are kept.
func (s *Session) Clear() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.clear()
}

func (s *Session) clear() {
	s.debounce.Stop()
	s.epoch++
	s.raster.Clear()
	s.tensor = nil
	s.current = nil
	s.state = Idle
	s.display.Clear()
}

// ResetModel discards all learning: fresh model, zero stats and no saved model.
func (s *Session) ResetModel(ctx context.Context) error {
	if !s.gate.Acquire() {
		s.observer.Busy(opReset)
		s.display.Status(StatusBusy, display.Loading)
		return model.ErrBusy
	}
	defer s.gate.Release()

	s.display.Status(StatusResetting, display.Loading)
	if err := s.classifier.Reset(); err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("could not reset model")
		s.display.Status(StatusResetFail, display.Error)
		return err
	}

	s.mutex.Lock()
	s.stats = model.Stats{}
	s.losses.Clear()
	s.mutex.Unlock()
	s.saveStats(ctx, model.Stats{})
	s.display.Stats(model.Stats{})

	if ms, ok := s.store.(storage.ModelStore); ok {
		err := ms.DeleteModel(ctx, s.id)
		if errors.Is(err, storage.NotFoundErr) {
			s.observer.Persistence(opDelete, metrics.Missing)
		} else {
			s.observer.Persistence(opDelete, metrics.Outcome(err))
			if err != nil {
				log.Warn().Err(err).Str("session", s.id).Msg("could not delete saved model")
			}
		}
	}

	s.Clear()
	s.display.Status(StatusReset, display.Ready)
	log.Info().Str("session", s.id).Msg("reset model")
	return nil
}

// SaveModel uploads the current model to the model store.
func (s *Session) SaveModel(ctx context.Context) error {
	ms, ok := s.store.(storage.ModelStore)
	if !ok {
		return ErrNoModelStore
	}
	if !s.gate.Acquire() {
		s.observer.Busy(opSave)
		s.display.Status(StatusBusy, display.Loading)
		return model.ErrBusy
	}
	defer s.gate.Release()

	if !s.classifier.Ready() {
		s.display.Status(StatusNoModel, display.Error)
		return model.ErrModelNotReady
	}

	s.display.Status(StatusSaving, display.Analyzing)
	s.display.Sync(emoji.Pending(SyncUploading))

	start := time.Now()
	b, err := s.classifier.Serialize()
	if err == nil {
		err = ms.SaveModel(ctx, s.id, b)
	}
	s.observer.Since(opSave, start)
	s.observer.Persistence(opSaveModel, metrics.Outcome(err))
	if err != nil {
		log.Error().Err(err).Str("session", s.id).Msg("could not save model")
		s.display.Status(StatusSaveFail, display.Error)
		s.display.Sync(emoji.Sync(false, SyncSaveFail))
		return err
	}
	s.display.Status(StatusSaved, display.Ready)
	s.display.Sync(emoji.Sync(true, SyncModelSaved))
	log.Info().Str("session", s.id).Int("bytes", len(b)).Msg("saved model")
	return nil
}
