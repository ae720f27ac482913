package wire

import "encoding/json"

// Frame is the single message shape exchanged between consoles and the
// relay. Documents always travel whole; a path's value is replaced, never
// patched.
//
// Client -> Server
//
//	UPDATE:       path + data (full replacement document)
//	SYNC_REQUEST: no fields, asks for a fresh INIT
//
// Server -> Client
//
//	INIT:   data is an object mapping every known path to its document
//	UPDATE: forwarded document, never echoed to the originating client
type Frame struct {
	Type string          `json:"type"`
	Path string          `json:"path,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	TypeInit        = "INIT"
	TypeUpdate      = "UPDATE"
	TypeSyncRequest = "SYNC_REQUEST"
)

// Init builds an INIT frame from a path -> document mapping.
func Init(state map[string]json.RawMessage) (Frame, error) {
	data, err := json.Marshal(state)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: TypeInit, Data: data}, nil
}

// Snapshot decodes an INIT frame's payload.
func Snapshot(f Frame) (map[string]json.RawMessage, error) {
	state := map[string]json.RawMessage{}
	if err := json.Unmarshal(f.Data, &state); err != nil {
		return nil, err
	}
	return state, nil
}
