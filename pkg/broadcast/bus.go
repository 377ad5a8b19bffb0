// Package broadcast implements the Broadcast Bus (C11): domain-event fan-out
// to channel subscribers, keyed by channel string ("project:<id>",
// "issue:<id>", or "run:<id>" when a subscriber lifts agent output into the
// broadcast stream).
package broadcast

import (
	"sync"
	"time"
)

// EventType enumerates every domain event the bus carries.
type EventType string

const (
	EventProjectCreated EventType = "project.created"
	EventProjectUpdated EventType = "project.updated"
	EventProjectDeleted EventType = "project.deleted"
	EventIssueCreated   EventType = "issue.created"
	EventIssueUpdated   EventType = "issue.updated"
	EventIssueDeleted   EventType = "issue.deleted"
	EventCommentCreated EventType = "comment.created"
	EventLabelCreated   EventType = "label.created"
	EventDocumentCreated EventType = "document.created"
	EventAgentOutput     EventType = "agent.output"
)

// Event is one domain event, published on a single channel.
type Event struct {
	Type      EventType
	At        time.Time
	ProjectID string
	IssueID   *int64
	Payload   interface{}
}

// ProjectChannel returns the canonical channel name for a project's events.
func ProjectChannel(projectID string) string { return "project:" + projectID }

// IssueChannel returns the canonical channel name for an issue's events.
func IssueChannel(issueID int64) string {
	return "issue:" + formatInt64(issueID)
}

// RunChannel returns the canonical channel name a subscriber uses to lift
// agent.output events for a specific run.
func RunChannel(runID string) string { return "run:" + runID }

func formatInt64(v int64) string {
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// Subscription is a live listener on one channel.
type Subscription struct {
	ch      chan Event
	bus     *Bus
	channel string
	id      uint64
}

func (s *Subscription) C() <-chan Event { return s.ch }

func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	subs := s.bus.subs[s.channel]
	delete(subs, s.id)
	if len(subs) == 0 {
		delete(s.bus.subs, s.channel)
	}
	close(s.ch)
}

// Bus multiplexes Events to subscribers keyed by channel string.
type Bus struct {
	mu      sync.Mutex
	subs    map[string]map[uint64]chan Event
	nextID  uint64
	bufSize int
}

// New returns an empty Bus.
func New(bufSize int) *Bus {
	if bufSize <= 0 {
		bufSize = 256
	}
	return &Bus{subs: map[string]map[uint64]chan Event{}, bufSize: bufSize}
}

// Subscribe registers a listener on channel.
func (b *Bus) Subscribe(channel string) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	ch := make(chan Event, b.bufSize)
	if b.subs[channel] == nil {
		b.subs[channel] = map[uint64]chan Event{}
	}
	b.subs[channel][id] = ch
	return &Subscription{ch: ch, bus: b, channel: channel, id: id}
}

// Publish delivers event to every subscriber of channel, in publication
// order for each individual subscriber (spec §5 ordering guarantee).
func (b *Bus) Publish(channel string, event Event) {
	b.mu.Lock()
	subs := make([]chan Event, 0, len(b.subs[channel]))
	for _, ch := range b.subs[channel] {
		subs = append(subs, ch)
	}
	b.mu.Unlock()
	for _, ch := range subs {
		ch <- event
	}
}

// SubscriberCount reports how many subscribers currently listen on channel.
func (b *Bus) SubscriberCount(channel string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[channel])
}
