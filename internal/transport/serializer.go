package transport

import (
	"encoding/json"
	"fmt"

	"github.com/corvuslab/meshbus/internal/hub"
)

// Serializer turns core types into self-describing wire bytes a peer's
// Serializer can reconstruct, and back. Implementations own the "payload
// encoding" half of §6: a typed Payload.Value outside their whitelist is
// encoded as an opaque string rather than failing.
type Serializer interface {
	EncodeRequest(hub.Request) ([]byte, error)
	DecodeRequest([]byte) (hub.Request, error)
	EncodeResponse(hub.Response) ([]byte, error)
	DecodeResponse([]byte) (hub.Response, error)
	EncodeMessage(hub.Message) ([]byte, error)
	DecodeMessage([]byte) (hub.Message, error)
}

// wirePayload is Payload's JSON projection. Value is carried as its JSON
// encoding whenever json.Marshal accepts it (it decodes as the generic JSON
// form: map, slice, string, float64, bool); a value json.Marshal rejects is
// replaced by its fmt.Sprint string form, still carried in Value.
type wirePayload struct {
	TypeTag string          `json:"type_tag,omitempty"`
	Value   json.RawMessage `json:"value,omitempty"`
	Bytes   []byte          `json:"bytes,omitempty"`
}

type wireRequest struct {
	Path     string            `json:"path"`
	Payload  wirePayload       `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
	SenderID string            `json:"sender_id,omitempty"`
}

type wireResponse struct {
	Payload  wirePayload       `json:"payload"`
	Metadata map[string]string `json:"metadata,omitempty"`
	Status   int               `json:"status"`
}

type wireMessage struct {
	Topic     string            `json:"topic"`
	Payload   wirePayload       `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	SenderID  string            `json:"sender_id,omitempty"`
	Timestamp int64             `json:"timestamp"`
}

// JSONSerializer is meshbus's default wire codec.
type JSONSerializer struct{}

func encodePayload(p hub.Payload) wirePayload {
	out := wirePayload{TypeTag: p.TypeTag, Bytes: p.Bytes}
	if p.Value == nil {
		return out
	}
	if raw, err := json.Marshal(p.Value); err == nil {
		out.Value = raw
	} else {
		out.Value, _ = json.Marshal(fmt.Sprint(p.Value))
	}
	return out
}

func decodePayload(w wirePayload) hub.Payload {
	p := hub.Payload{TypeTag: w.TypeTag, Bytes: w.Bytes}
	if len(w.Value) > 0 {
		var v any
		if err := json.Unmarshal(w.Value, &v); err == nil {
			p.Value = v
		}
	}
	return p
}

func (JSONSerializer) EncodeRequest(req hub.Request) ([]byte, error) {
	return json.Marshal(wireRequest{
		Path:     req.Path,
		Payload:  encodePayload(req.Payload),
		Metadata: req.Metadata,
		SenderID: req.SenderID,
	})
}

func (JSONSerializer) DecodeRequest(data []byte) (hub.Request, error) {
	var w wireRequest
	if err := json.Unmarshal(data, &w); err != nil {
		return hub.Request{}, fmt.Errorf("transport: decode request: %w", err)
	}
	return hub.Request{
		Path:     w.Path,
		Payload:  decodePayload(w.Payload),
		Metadata: hub.Metadata(w.Metadata),
		SenderID: w.SenderID,
	}, nil
}

func (JSONSerializer) EncodeResponse(resp hub.Response) ([]byte, error) {
	return json.Marshal(wireResponse{
		Payload:  encodePayload(resp.Payload),
		Metadata: resp.Metadata,
		Status:   int(resp.Status),
	})
}

func (JSONSerializer) DecodeResponse(data []byte) (hub.Response, error) {
	var w wireResponse
	if err := json.Unmarshal(data, &w); err != nil {
		return hub.Response{}, fmt.Errorf("transport: decode response: %w", err)
	}
	return hub.Response{
		Payload:  decodePayload(w.Payload),
		Metadata: hub.Metadata(w.Metadata),
		Status:   hub.Status(w.Status),
	}, nil
}

func (JSONSerializer) EncodeMessage(msg hub.Message) ([]byte, error) {
	return json.Marshal(wireMessage{
		Topic:     msg.Topic,
		Payload:   encodePayload(msg.Payload),
		Metadata:  msg.Metadata,
		SenderID:  msg.SenderID,
		Timestamp: msg.Timestamp,
	})
}

func (JSONSerializer) DecodeMessage(data []byte) (hub.Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return hub.Message{}, fmt.Errorf("transport: decode message: %w", err)
	}
	return hub.Message{
		Topic:     w.Topic,
		Payload:   decodePayload(w.Payload),
		Metadata:  hub.Metadata(w.Metadata),
		SenderID:  w.SenderID,
		Timestamp: w.Timestamp,
	}, nil
}
