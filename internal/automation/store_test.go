package automation

import (
	"sync"
	"testing"
)

func TestStoreState(t *testing.T) {
	s := NewStore()

	if _, ok := s.GetState("missing"); ok {
		t.Error("GetState on empty store reported ok")
	}

	s.SetState("hp", 42.0)
	v, ok := s.GetState("hp")
	if !ok {
		t.Fatal("GetState did not find set key")
	}
	if v != 42.0 {
		t.Errorf("GetState = %v, want 42", v)
	}

	s.SetState("hp", 10.0)
	v, _ = s.GetState("hp")
	if v != 10.0 {
		t.Errorf("GetState after overwrite = %v, want 10", v)
	}
}

func TestStoreQueueFIFO(t *testing.T) {
	s := NewStore()

	s.QueueResponse("first")
	s.QueueResponse("second")

	if got := s.Pending(); got != 2 {
		t.Errorf("Pending() = %d, want 2", got)
	}

	text, ok := s.PollResponse()
	if !ok || text != "first" {
		t.Errorf("PollResponse = (%q, %v), want (\"first\", true)", text, ok)
	}
	text, ok = s.PollResponse()
	if !ok || text != "second" {
		t.Errorf("PollResponse = (%q, %v), want (\"second\", true)", text, ok)
	}
	if _, ok := s.PollResponse(); ok {
		t.Error("PollResponse on empty queue reported ok")
	}
}

func TestStoreIgnoresEmptyResponse(t *testing.T) {
	s := NewStore()
	s.QueueResponse("")
	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d after empty queue, want 0", got)
	}
}

func TestStoreConcurrentAccess(t *testing.T) {
	s := NewStore()
	var wg sync.WaitGroup

	// One writer mutating state and queueing, one reader polling:
	// mirrors the inbound trigger flow against the outbound poll.
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			s.SetState("counter", i)
			s.QueueResponse("go")
		}
	}()
	go func() {
		defer wg.Done()
		polled := 0
		for polled < 1000 {
			if _, ok := s.PollResponse(); ok {
				polled++
			}
			s.GetState("counter")
		}
	}()
	wg.Wait()

	if got := s.Pending(); got != 0 {
		t.Errorf("Pending() = %d after draining, want 0", got)
	}
}
