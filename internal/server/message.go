package server

import (
	"encoding/json"
	"time"

	"github.com/lox/blackjack/internal/game"
)

// MessageType represents a WebSocket message type with type safety
type MessageType string

const (
	// Client → Server
	MessageTypeOpen     MessageType = "open"
	MessageTypeAction   MessageType = "action"
	MessageTypeSnapshot MessageType = "snapshot"
	MessageTypeEnd      MessageType = "end"
	MessageTypeBalance  MessageType = "balance"

	// Server → Client. Snapshot is shared with the client request above.
	MessageTypeSettled         MessageType = "settled"
	MessageTypeError           MessageType = "error"
	MessageTypeBalanceResponse MessageType = "balance_response"
)

func (mt MessageType) String() string {
	return string(mt)
}

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// Client → Server Messages

type OpenData struct {
	Account string `json:"account"`
	Bet     int64  `json:"bet"`
}

// ActionData targets a round. Action is one of hit, stand, double, split,
// surrender, insure or decline_insurance.
type ActionData struct {
	RoundID string `json:"roundId"`
	Action  string `json:"action"`
}

type RoundData struct {
	RoundID string `json:"roundId"`
}

type BalanceData struct {
	Account string `json:"account"`
}

// Server → Client Messages

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Snapshot is the latest valid state of the round the request targeted
	Snapshot *game.Snapshot `json:"snapshot,omitempty"`
}

type BalanceResponseData struct {
	Account string `json:"account"`
	Balance int64  `json:"balance"`
}

// HTTP request bodies

type openRequest struct {
	Account string `json:"account" binding:"required"`
	Bet     int64  `json:"bet"`
}

type insuranceRequest struct {
	PlaceBet *bool `json:"place_bet" binding:"required"`
}
