// Package protocol defines the messages exchanged between the map server and its clients.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// MessageType identifies the type of message.
type MessageType string

// Authentication message types
const (
	TypeAuthenticate MessageType = "authenticate"
	TypeAuthResult   MessageType = "auth_result"
)

// Map management message types
const (
	TypeListMaps    MessageType = "list_maps"
	TypeMapList     MessageType = "map_list"
	TypeOpenMap     MessageType = "open_map"
	TypeCreateMap   MessageType = "create_map"
	TypeGenerateMap MessageType = "generate_map"
	TypeCloseMap    MessageType = "close_map"
	TypeSaveMap     MessageType = "save_map"
	TypeMapSaved    MessageType = "map_saved"
	TypeMapInfo     MessageType = "map_info"
)

// Query message types. Each request is answered by its result type,
// carrying the request's id.
const (
	TypeContains        MessageType = "contains"
	TypeContainsResult  MessageType = "contains_result"
	TypeClamp           MessageType = "clamp"
	TypeClampResult     MessageType = "clamp_result"
	TypeProject         MessageType = "project"
	TypeProjection      MessageType = "projection"
	TypeUnproject       MessageType = "unproject"
	TypeUnprojection    MessageType = "unprojection"
	TypeTerrainAt       MessageType = "terrain_at"
	TypeTerrain         MessageType = "terrain"
	TypeFindTiles       MessageType = "find_tiles"
	TypeTiles           MessageType = "tiles"
	TypeEdgeCells       MessageType = "edge_cells"
	TypeEdgeCellsResult MessageType = "edge_cells_result"
)

// Edit message types. Edits are answered with cells_changed, which is also
// sent to every other client viewing the map.
const (
	TypeSetHeight    MessageType = "set_height"
	TypeSetTile      MessageType = "set_tile"
	TypeCellsChanged MessageType = "cells_changed"
)

// System message types
const (
	TypeWelcome MessageType = "welcome"
	TypeError   MessageType = "error"
	TypePing    MessageType = "ping"
	TypePong    MessageType = "pong"
)

// Message is the envelope for all messages.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewMessage creates a new message with the given type and payload.
func NewMessage(msgType MessageType, payload interface{}) (*Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      msgType,
		ID:        uuid.New().String(),
		Timestamp: time.Now().UnixMilli(),
		Payload:   data,
	}, nil
}

// NewReply creates a message answering the request with id requestID.
func NewReply(requestID string, msgType MessageType, payload interface{}) (*Message, error) {
	msg, err := NewMessage(msgType, payload)
	if err != nil {
		return nil, err
	}
	msg.ID = requestID
	return msg, nil
}

// ParsePayload unmarshals the payload into the given type.
func (m *Message) ParsePayload(v interface{}) error {
	return json.Unmarshal(m.Payload, v)
}

// ErrorCode represents an error type.
type ErrorCode string

const (
	ErrCodeInvalidRequest   ErrorCode = "invalid_request"
	ErrCodeUnknownType      ErrorCode = "unknown_type"
	ErrCodeNoMapOpen        ErrorCode = "no_map_open"
	ErrCodeMapNotFound      ErrorCode = "map_not_found"
	ErrCodeMapExists        ErrorCode = "map_exists"
	ErrCodeOutOfBounds      ErrorCode = "out_of_bounds"
	ErrCodeInvalidMap       ErrorCode = "invalid_map"
	ErrCodeNotAuthenticated ErrorCode = "not_authenticated"
	ErrCodeInternalError    ErrorCode = "internal_error"
)

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Error makes ErrorPayload usable as an error on the client side.
func (e *ErrorPayload) Error() string {
	return string(e.Code) + ": " + e.Message
}
