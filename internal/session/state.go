package session

import (
	"context"

	"github.com/drakos74/draw-guess/internal/model"
)

// State is the phase of the feedback loop.
type State int

const (
	Idle State = iota
	Drawing
	AwaitingPrediction
	Displaying
	Training
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Drawing:
		return "drawing"
	case AwaitingPrediction:
		return "awaiting-prediction"
	case Displaying:
		return "displaying"
	case Training:
		return "training"
	}
	return "unknown"
}

// Classifier is the trainable model behind a session.
// Implementations need not be safe for concurrent use.
type Classifier interface {
	Ready() bool
	Predict(ctx context.Context, x *model.Tensor) (model.Prediction, error)
	Train(ctx context.Context, x *model.Tensor, label model.Label) ([]float64, error)
	Reset() error
	Serialize() ([]byte, error)
	Deserialize(b []byte) error
}

const (
	StatusStart        = "Ready - Draw to start!"
	StatusNotReady     = "Model not ready"
	StatusAnalyzing    = "Analyzing..."
	StatusReady        = "Ready"
	StatusPredictFail  = "Prediction failed"
	StatusLearning     = "Learning..."
	StatusConfirmed    = "✓ Learned! AI confirmed digit %d"
	StatusCorrected    = "✓ Corrected! AI learned digit %d"
	StatusTrainFail    = "Training failed"
	StatusBusy         = "Busy"
	StatusResetting    = "Resetting model..."
	StatusReset        = "Model reset! Ready to learn."
	StatusResetFail    = "Reset failed"
	StatusSaving       = "Saving model to cloud..."
	StatusSaved        = "Model saved to cloud!"
	StatusSaveFail     = "Failed to save model"
	StatusNoModel      = "No model to save!"
	StatusModelLoaded  = "Model loaded from cloud!"
	SyncSynced         = "Synced"
	SyncFailed         = "Sync failed"
	SyncLoading        = "Loading..."
	SyncConnected      = "Connected"
	SyncConnectionFail = "Connection failed"
	SyncUploading      = "Uploading..."
	SyncModelSaved     = "Model saved"
	SyncSaveFail       = "Save failed"
)
