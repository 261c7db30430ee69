// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import "sync"

// =============================================================================
// EVENT SINKS
// =============================================================================

// EventSink receives executor events. Send must not block.
type EventSink interface {
	Send(Event)
}

// SinkFunc adapts a function to EventSink.
type SinkFunc func(Event)

// Send calls f.
func (f SinkFunc) Send(ev Event) {
	f(ev)
}

// MultiSink fans every event out to each sink in order. Nil sinks are skipped.
type MultiSink []EventSink

// Send forwards ev to every sink.
func (m MultiSink) Send(ev Event) {
	for _, s := range m {
		if s != nil {
			s.Send(ev)
		}
	}
}

// =============================================================================
// EVENT STREAM
// =============================================================================

// EventStream is an unbounded, ordered EventSink read through a channel.
//
// Send never blocks: events queue in memory until the reader takes them.
// After Close, Send is a no-op and Events is closed once the backlog drains.
// Readers must keep draining Events until it is closed.
type EventStream struct {
	mu      sync.Mutex
	backlog []Event
	closed  bool

	// notify wakes the pump; capacity 1 so signals coalesce
	notify chan struct{}
	out    chan Event
}

// NewEventStream creates a stream and starts its delivery goroutine.
func NewEventStream() *EventStream {
	s := &EventStream{
		notify: make(chan struct{}, 1),
		out:    make(chan Event),
	}
	go s.pump()
	return s
}

// Send queues ev for delivery.
func (s *EventStream) Send(ev Event) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.backlog = append(s.backlog, ev)
	s.mu.Unlock()
	s.wake()
}

// Events returns the channel events are delivered on.
func (s *EventStream) Events() <-chan Event {
	return s.out
}

// Pending returns the number of queued events not yet delivered.
func (s *EventStream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.backlog)
}

// Close stops accepting events. Events already queued are still delivered.
func (s *EventStream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wake()
}

func (s *EventStream) wake() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *EventStream) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.backlog) == 0 {
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return
			}
			<-s.notify
			continue
		}
		ev := s.backlog[0]
		s.backlog[0] = Event{}
		s.backlog = s.backlog[1:]
		s.mu.Unlock()

		s.out <- ev
	}
}
