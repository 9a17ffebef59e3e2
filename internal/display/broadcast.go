package display

import (
	"sync"

	"github.com/drakos74/draw-guess/internal/model"
	"github.com/rs/zerolog/log"
)

const defaultBuffer = 32

// Broadcaster fans the updates of a session out to its subscribers.
// New subscribers receive the latest state first.
type Broadcaster struct {
	mutex       *sync.Mutex
	buffer      int
	next        int
	subscribers map[int]chan Event
	last        map[EventType]Event
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		mutex:       new(sync.Mutex),
		buffer:      defaultBuffer,
		subscribers: make(map[int]chan Event),
		last:        make(map[EventType]Event),
	}
}

// Subscribe returns the event channel and the function that cancels the subscription.
func (b *Broadcaster) Subscribe() (<-chan Event, func()) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, b.buffer)
	for _, t := range []EventType{StatsEvent, SyncEvent, StatusEvent, PredictionEvent} {
		if e, ok := b.last[t]; ok {
			ch <- e
		}
	}
	b.subscribers[id] = ch
	return ch, func() {
		b.mutex.Lock()
		defer b.mutex.Unlock()
		if c, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(c)
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Broadcaster) Subscribers() int {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return len(b.subscribers)
}

func (b *Broadcaster) publish(e Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if e.Type == ClearEvent {
		delete(b.last, PredictionEvent)
	} else {
		b.last[e.Type] = e
	}
	for id, ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			log.Warn().Int("subscriber", id).Str("type", string(e.Type)).Msg("dropped display event")
		}
	}
}

func (b *Broadcaster) Status(text string, level Level) {
	b.publish(statusEvent(text, level))
}

func (b *Broadcaster) Sync(text string) {
	b.publish(syncEvent(text))
}

func (b *Broadcaster) Prediction(p model.Prediction) {
	b.publish(predictionEvent(p))
}

func (b *Broadcaster) Stats(s model.Stats) {
	b.publish(statsEvent(s))
}

func (b *Broadcaster) Clear() {
	b.publish(clearEvent())
}
