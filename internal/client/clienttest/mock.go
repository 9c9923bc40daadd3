// Package clienttest provides a scripted TextGenerator for tests.
package clienttest

import (
	"context"
	"sync"

	"github.com/mentorboxai/api/internal/client"
)

// Reply is one scripted outcome of a Generate call.
type Reply struct {
	Text string
	Err  error
}

// Call records the arguments of one Generate call.
type Call struct {
	Prompt string
	Params client.GenerationParams
}

// MockGenerator is a thread-safe client.TextGenerator.
//
// Responses are consumed in order. Once exhausted, Respond is consulted if set,
// otherwise the empty string is returned. Err takes precedence over both.
//
//	mock := &clienttest.MockGenerator{
//	    Responses: []clienttest.Reply{
//	        {Text: `{"core_concepts": ["antibodies"]}`},
//	        {Err: client.ErrUpstreamMalformed},
//	    },
//	}
type MockGenerator struct {
	mu        sync.Mutex
	Responses []Reply
	Respond   func(prompt string) (string, error)
	Err       error
	calls     []Call
	index     int
}

// Generate implements client.TextGenerator.
func (m *MockGenerator) Generate(ctx context.Context, prompt string, params client.GenerationParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, Call{Prompt: prompt, Params: params})

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if m.index < len(m.Responses) {
		r := m.Responses[m.index]
		m.index++
		return r.Text, r.Err
	}
	if m.Respond != nil {
		return m.Respond(prompt)
	}
	return "", nil
}

// Calls returns a copy of every recorded call.
func (m *MockGenerator) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of Generate calls.
func (m *MockGenerator) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// Reset clears recorded calls and rewinds Responses.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.index = 0
}
