// Package automation watches inbound text for pattern triggers and
// runs Lua scripts in response.
//
// Scripts keep state in a shared Store and queue auto-responses that
// the session transmits as if the user had typed them. The store is
// owned explicitly and injected, never ambient: the inbound flow
// mutates it through trigger scripts while the outbound flow polls the
// response queue, so every access is synchronized.
package automation

import "sync"

// Store holds script state and the auto-response queue. Safe for
// concurrent use from both session flows.
type Store struct {
	mu    sync.Mutex
	state map[string]any
	queue []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		state: make(map[string]any),
	}
}

// SetState sets a state variable.
func (s *Store) SetState(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[key] = value
}

// GetState returns a state variable and whether it was set.
func (s *Store) GetState(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.state[key]
	return v, ok
}

// QueueResponse appends an auto-response to be sent to the remote.
// Empty responses are ignored.
func (s *Store) QueueResponse(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, text)
}

// PollResponse removes and returns the oldest queued auto-response.
// Non-blocking; ok is false when the queue is empty.
func (s *Store) PollResponse() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.queue) == 0 {
		return "", false
	}
	text := s.queue[0]
	s.queue = s.queue[1:]
	return text, true
}

// Pending returns the number of queued auto-responses.
func (s *Store) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}
