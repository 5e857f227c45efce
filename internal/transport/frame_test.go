package transport

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	original := Frame{Type: FrameRequest, Payload: []byte(`{"path":"/ping"}`)}

	require.NoError(t, WriteFrame(&buf, original))

	got, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, original.Type, got.Type)
	assert.Equal(t, original.Payload, got.Payload)
}

func TestReadFrameEmptyPayload(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteFrame(&buf, Frame{Type: FrameHeartbeatReq}))

	got, err := ReadFrame(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, FrameHeartbeatReq, got.Type)
	assert.Empty(t, got.Payload)
}

func TestReadFrameRejectsOversizedLength(t *testing.T) {
	header := []byte{byte(FrameRequest), 0xFF, 0xFF, 0xFF, 0xFF}
	_, err := ReadFrame(bufio.NewReader(bytes.NewReader(header)))
	assert.Error(t, err)
}
