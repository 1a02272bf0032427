package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the wire frame for both directions: {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// DecodeInbound parses one client frame. Unknown event names and malformed
// payloads return an error; they never tear down the connection.
func DecodeInbound(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	switch env.Event {
	case EventJoinRoom:
		var ev JoinRoom
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		return ev, nil
	case EventLeaveRoom:
		var ev LeaveRoom
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		return ev, nil
	case EventSendMessage:
		var ev SendMessage
		if err := json.Unmarshal(env.Data, &ev); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", env.Event, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("unknown event %q", env.Event)
	}
}

// Encode wraps an outbound event in the wire envelope.
func Encode(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return json.Marshal(Envelope{Event: ev.EventName(), Data: data})
}
