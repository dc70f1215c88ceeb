package ws

import (
	"encoding/json"
	"fmt"
)

// Subprotocols. JSON clients get text frames; zstd clients get the same
// JSON message compressed into binary frames.
const (
	ProtocolJSON = "json.gexdash.v1"
	ProtocolZstd = "zstd.gexdash.v1"
)

// request is a page -> server control message.
type request struct {
	Type  string  `json:"type"`
	Group string  `json:"group"`
	AckID *uint64 `json:"ackId"`
}

func parseRequest(data []byte) (request, error) {
	var req request
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode request: %w", err)
	}
	switch req.Type {
	case "joinGroup", "leaveGroup", "ping":
		return req, nil
	default:
		return req, fmt.Errorf("unknown request type %q", req.Type)
	}
}

type systemFrame struct {
	Type         string `json:"type"`
	Event        string `json:"event"`
	ConnectionID string `json:"connectionId"`
}

type ackError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

type ackFrame struct {
	Type    string    `json:"type"`
	AckID   uint64    `json:"ackId"`
	Success bool      `json:"success"`
	Error   *ackError `json:"error,omitempty"`
}

type dataFrame struct {
	Type     string          `json:"type"`
	From     string          `json:"from"`
	Group    string          `json:"group"`
	DataType string          `json:"dataType"`
	Data     json.RawMessage `json:"data"`
}

// frame marshals v. The frame types above cannot fail to encode.
func frame(v any) []byte {
	b, _ := json.Marshal(v)
	return b
}

func connectedFrame(connID string) []byte {
	return frame(systemFrame{Type: "system", Event: "connected", ConnectionID: connID})
}

func ackFor(ackID uint64, ok bool) []byte {
	a := ackFrame{Type: "ack", AckID: ackID, Success: ok}
	if !ok {
		a.Error = &ackError{Name: "Forbidden", Message: "unknown group"}
	}
	return frame(a)
}

func sessionFrame(group string, payload json.RawMessage) []byte {
	return frame(dataFrame{Type: "message", From: "group", Group: group, DataType: "json", Data: payload})
}

var pongFrame = frame(map[string]string{"type": "pong"})
