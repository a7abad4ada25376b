package service

import "github.com/stemsi/exstem-portal/internal/model"

// EventType names a session state change.
type EventType string

const (
	EventLoaded       EventType = "loaded"
	EventLoadFailed   EventType = "load_failed"
	EventTick         EventType = "tick"
	EventAnswer       EventType = "answer"
	EventMark         EventType = "mark"
	EventNavigate     EventType = "navigate"
	EventSubmitting   EventType = "submitting"
	EventSubmitted    EventType = "submitted"
	EventSubmitFailed EventType = "submit_failed"
)

// Event is pushed to subscribers after every state change.
type Event struct {
	Type      EventType           `json:"type"`
	Remaining int                 `json:"remaining,omitempty"`
	Clock     string              `json:"clock,omitempty"`
	Question  int                 `json:"question,omitempty"`
	Option    string              `json:"option,omitempty"`
	Marked    bool                `json:"marked,omitempty"`
	Trigger   model.SubmitTrigger `json:"trigger,omitempty"`
	Message   string              `json:"message,omitempty"`
}

// subscriberBuffer is how many events a slow subscriber may lag behind
// before events are dropped for it.
const subscriberBuffer = 64

// Subscribe returns a channel of session events and a function that ends
// the subscription. The channel is closed when the session closes.
func (s *ExamSession) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSubscribe
	s.nextSubscribe++
	s.subscribers[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			close(c)
			delete(s.subscribers, id)
		}
	}
}

func (s *ExamSession) emitLocked(e Event) {
	if e.Type == EventTick || e.Type == EventLoaded {
		e.Clock = FormatClock(e.Remaining)
	}
	for _, ch := range s.subscribers {
		select {
		case ch <- e:
		default:
			s.log.Debug().Str("event", string(e.Type)).Msg("Subscriber lagging, event dropped")
		}
	}
}
