package transport

import (
	"fmt"
	"testing"

	"github.com/corvuslab/meshbus/internal/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONSerializerRequestRoundTrip(t *testing.T) {
	s := JSONSerializer{}
	req := hub.Request{
		Path:     "/users/create",
		Payload:  hub.Payload{TypeTag: "json", Value: map[string]any{"name": "ada"}},
		Metadata: hub.Metadata{"fallback": "/v1/users/create"},
		SenderID: "caller-1",
	}

	data, err := s.EncodeRequest(req)
	require.NoError(t, err)

	got, err := s.DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, req.Path, got.Path)
	assert.Equal(t, req.SenderID, got.SenderID)
	assert.Equal(t, "/v1/users/create", got.Metadata["fallback"])
}

func TestJSONSerializerResponseRoundTrip(t *testing.T) {
	s := JSONSerializer{}
	resp := hub.Response{
		Payload: hub.Payload{TypeTag: "json", Value: "hello"},
		Status:  hub.StatusSuccess,
	}

	data, err := s.EncodeResponse(resp)
	require.NoError(t, err)

	got, err := s.DecodeResponse(data)
	require.NoError(t, err)
	assert.Equal(t, hub.StatusSuccess, got.Status)
	assert.Equal(t, "hello", got.Payload.Value)
}

func TestJSONSerializerOpaqueValueFallsBackToString(t *testing.T) {
	s := JSONSerializer{}
	ch := make(chan int)
	req := hub.Request{Path: "/x", Payload: hub.Payload{Value: ch}}

	data, err := s.EncodeRequest(req)
	require.NoError(t, err)

	got, err := s.DecodeRequest(data)
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(ch), got.Payload.Value)
}
