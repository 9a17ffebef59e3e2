package display

import (
	"sync"

	"github.com/drakos74/draw-guess/internal/model"
)

// Recorder keeps every update in memory.
type Recorder struct {
	mutex  *sync.Mutex
	events []Event
	notify func(e Event)
}

// NewRecorder creates a new recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		mutex:  new(sync.Mutex),
		events: make([]Event, 0),
	}
}

// Notify registers a callback invoked for every recorded event.
func (r *Recorder) Notify(notify func(e Event)) *Recorder {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.notify = notify
	return r
}

func (r *Recorder) record(e Event) {
	r.mutex.Lock()
	r.events = append(r.events, e)
	notify := r.notify
	r.mutex.Unlock()
	if notify != nil {
		notify(e)
	}
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	ee := make([]Event, len(r.events))
	copy(ee, r.events)
	return ee
}

// Of returns the recorded events of the given type.
func (r *Recorder) Of(t EventType) []Event {
	ee := make([]Event, 0)
	for _, e := range r.Events() {
		if e.Type == t {
			ee = append(ee, e)
		}
	}
	return ee
}

// Last returns the latest event of the given type.
func (r *Recorder) Last(t EventType) (Event, bool) {
	ee := r.Of(t)
	if len(ee) == 0 {
		return Event{}, false
	}
	return ee[len(ee)-1], true
}

// Texts returns the texts of the status or sync events.
func (r *Recorder) Texts(t EventType) []string {
	ss := make([]string, 0)
	for _, e := range r.Of(t) {
		ss = append(ss, e.Text)
	}
	return ss
}

// Reset drops the recorded events.
func (r *Recorder) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.events = make([]Event, 0)
}

func (r *Recorder) Status(text string, level Level) {
	r.record(statusEvent(text, level))
}

func (r *Recorder) Sync(text string) {
	r.record(syncEvent(text))
}

func (r *Recorder) Prediction(p model.Prediction) {
	r.record(predictionEvent(p))
}

func (r *Recorder) Stats(s model.Stats) {
	r.record(statsEvent(s))
}

func (r *Recorder) Clear() {
	r.record(clearEvent())
}
