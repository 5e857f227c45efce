package hub

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInterceptorManagerPriorityOrdering(t *testing.T) {
	m := NewInterceptorManager()

	var order []string
	m.RegisterRequest("/x", 1, func(req Request) InterceptResult {
		order = append(order, "low")
		return InterceptResult{}
	})
	m.RegisterRequest("/x", 10, func(req Request) InterceptResult {
		order = append(order, "high")
		return InterceptResult{}
	})
	m.RegisterRequest("/x", 5, func(req Request) InterceptResult {
		order = append(order, "mid")
		return InterceptResult{}
	})

	_, matched := m.InterceptRequest(Request{Path: "/x"})
	assert.False(t, matched)
	assert.Equal(t, []string{"high", "mid", "low"}, order)
}

func TestInterceptorManagerExactBeforeWildcard(t *testing.T) {
	m := NewInterceptorManager()

	m.RegisterRequest("/api/*", 100, func(req Request) InterceptResult {
		return InterceptResult{Matched: true, Response: Response{Status: StatusIntercepted, Payload: Payload{Value: "wildcard"}}}
	})
	m.RegisterRequest("/api/users", 1, func(req Request) InterceptResult {
		return InterceptResult{Matched: true, Response: Response{Status: StatusIntercepted, Payload: Payload{Value: "exact"}}}
	})

	resp, matched := m.InterceptRequest(Request{Path: "/api/users"})
	require.True(t, matched)
	assert.Equal(t, "exact", resp.Payload.Value)
}

func TestInterceptorManagerLongestPrefixWins(t *testing.T) {
	m := NewInterceptorManager()

	m.RegisterRequest("/api/*", 1, func(req Request) InterceptResult {
		return InterceptResult{Matched: true, Response: Response{Payload: Payload{Value: "short"}}}
	})
	m.RegisterRequest("/api/v1/*", 1, func(req Request) InterceptResult {
		return InterceptResult{Matched: true, Response: Response{Payload: Payload{Value: "long"}}}
	})

	resp, matched := m.InterceptRequest(Request{Path: "/api/v1/users"})
	require.True(t, matched)
	assert.Equal(t, "long", resp.Payload.Value)
}

func TestInterceptorManagerUnregister(t *testing.T) {
	m := NewInterceptorManager()
	id := m.RegisterRequest("/x", 1, func(req Request) InterceptResult {
		return InterceptResult{Matched: true}
	})

	assert.True(t, m.UnregisterRequest(id))
	assert.False(t, m.UnregisterRequest(id))

	_, matched := m.InterceptRequest(Request{Path: "/x"})
	assert.False(t, matched)
}

func TestInterceptorManagerTopicAndMethod(t *testing.T) {
	m := NewInterceptorManager()
	m.RegisterTopic("events.*", 1, func(msg Message) (Payload, bool) {
		return Payload{Value: "claimed"}, true
	})

	payload, ok := m.InterceptTopic(Message{Topic: "events.created"})
	require.True(t, ok)
	assert.Equal(t, "claimed", payload.Value)

	m.RegisterMethod("Order", "Save", 1, func(target, args any) (any, bool) {
		return "intercepted", true
	})
	result, ok := m.InterceptMethod("Order", "Save", nil, nil)
	require.True(t, ok)
	assert.Equal(t, "intercepted", result)
}
