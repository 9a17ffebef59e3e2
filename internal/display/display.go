// Package display turns session updates into events for the browser.
package display

import (
	"github.com/drakos74/draw-guess/internal/model"
)

// Level is the indicator colour of a status message.
type Level string

const (
	Ready     Level = "ready"
	Loading   Level = "loading"
	Analyzing Level = "analyzing"
	Error     Level = "error"
)

// EventType is the kind of display update.
type EventType string

const (
	StatusEvent     EventType = "status"
	SyncEvent       EventType = "sync"
	PredictionEvent EventType = "prediction"
	StatsEvent      EventType = "stats"
	ClearEvent      EventType = "clear"
)

// Display receives the updates of a session.
type Display interface {
	Status(text string, level Level)
	Sync(text string)
	Prediction(p model.Prediction)
	Stats(s model.Stats)
	Clear()
}

// Bar is one row of the prediction grid.
type Bar struct {
	Digit      int     `json:"digit"`
	Confidence float64 `json:"confidence"`
	Percent    string  `json:"percent"`
	Icon       string  `json:"icon"`
}

// PredictionView is the rendered prediction.
type PredictionView struct {
	Digit      int    `json:"digit"`
	Confidence string `json:"confidence"`
	Bars       []Bar  `json:"bars"`
}

// StatsView is the rendered statistics.
type StatsView struct {
	Samples  int    `json:"samples"`
	Accuracy string `json:"accuracy"`
}

// Event is a single display update as sent over the wire.
type Event struct {
	Type       EventType       `json:"type"`
	Text       string          `json:"text,omitempty"`
	Level      Level           `json:"level,omitempty"`
	Prediction *PredictionView `json:"prediction,omitempty"`
	Stats      *StatsView      `json:"stats,omitempty"`
}

func statusEvent(text string, level Level) Event {
	return Event{Type: StatusEvent, Text: text, Level: level}
}

func syncEvent(text string) Event {
	return Event{Type: SyncEvent, Text: text}
}

func predictionEvent(p model.Prediction) Event {
	view := View(p)
	return Event{Type: PredictionEvent, Prediction: &view}
}

func statsEvent(s model.Stats) Event {
	return Event{Type: StatsEvent, Stats: &StatsView{
		Samples:  s.TotalSamples,
		Accuracy: Accuracy(s),
	}}
}

func clearEvent() Event {
	return Event{Type: ClearEvent}
}

// Void discards all updates.
type Void struct{}

func (v Void) Status(text string, level Level) {}

func (v Void) Sync(text string) {}

func (v Void) Prediction(p model.Prediction) {}

func (v Void) Stats(s model.Stats) {}

func (v Void) Clear() {}

// Subscriber is a display that streams its events.
type Subscriber interface {
	Subscribe() (<-chan Event, func())
}
