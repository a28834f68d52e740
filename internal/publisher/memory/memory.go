// Package memory provides an in-memory Publisher for development runs and
// tests.
package memory

import (
	"context"
	"strconv"
	"sync"
)

// Event is one captured publication.
type Event struct {
	Topic   string
	Payload any
}

// Publisher records events instead of sending them anywhere.
type Publisher struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned by every Publish call.
	Err error
}

// New creates an empty in-memory publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish records the event and returns a synthetic message id.
func (p *Publisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return "", p.Err
	}
	p.events = append(p.events, Event{Topic: topic, Payload: payload})
	return "mem-" + strconv.Itoa(len(p.events)), nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}
