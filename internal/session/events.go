package session

import "sync"

// State is the lifecycle position of the current capture.
type State string

const (
	StateIdle       State = "idle"
	StateRecording  State = "recording"
	StateProcessing State = "processing"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

// Busy reports whether a new capture is refused in this state.
func (s State) Busy() bool {
	return s == StateRecording || s == StateProcessing
}

// Source identifies where a transcript came from.
type Source string

const (
	SourceMicrophone Source = "microphone"
	SourcePDF        Source = "pdf"
)

// EventType names a controller notification.
type EventType string

const (
	EventStatus     EventType = "status"
	EventFragment   EventType = "fragment"
	EventTranscript EventType = "transcript"
	EventError      EventType = "error"
	EventLectures   EventType = "lectures"
)

// Event is delivered to subscribers on every observable change.
type Event struct {
	Type      EventType
	State     State
	SessionID string
	Text      string
	Source    Source
	Message   string
	Fragments int
	Bytes     int
}

const subscriberBuffer = 64

// hub fans events out to subscribers without blocking the publisher.
type hub struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func (h *hub) subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs == nil {
		h.subs = make(map[int]chan Event)
	}
	id := h.next
	h.next++
	ch := make(chan Event, subscriberBuffer)
	h.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(ch)
		})
	}
	return ch, cancel
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop.
		}
	}
}
