package server

import (
	"encoding/json"
	"time"

	"github.com/lox/chiptable/internal/game"
)

// Message represents the base WebSocket message structure
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"requestId,omitempty"`
}

// MessageType identifies the payload carried by a Message
type MessageType string

// Client → Server
const (
	MessageTypeSubscribe       MessageType = "subscribe"
	MessageTypeUnsubscribe     MessageType = "unsubscribe"
	MessageTypeCreateTable     MessageType = "create_table"
	MessageTypeJoinTable       MessageType = "join_table"
	MessageTypeLeaveTable      MessageType = "leave_table"
	MessageTypeStartRound      MessageType = "start_round"
	MessageTypeMoveDealer      MessageType = "move_dealer"
	MessageTypePlayerAction    MessageType = "player_action"
	MessageTypeEndRound        MessageType = "end_round"
	MessageTypeUpdateChips     MessageType = "update_chips"
	MessageTypeUpdateBlinds    MessageType = "update_blinds"
	MessageTypeUpdatePositions MessageType = "update_positions"
	MessageTypeSetActive       MessageType = "set_active"
)

// Server → Client
const (
	MessageTypeTableSnapshot MessageType = "table_snapshot"
	MessageTypeSubscribed    MessageType = "subscribed"
	MessageTypeUnsubscribed  MessageType = "unsubscribed"
	MessageTypeResult        MessageType = "result"
	MessageTypeError         MessageType = "error"
)

func (mt MessageType) String() string {
	return string(mt)
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

// Requests. Each is accepted as a WebSocket message body and, with the ids
// taken from the URL, as a REST request body.

type TableRefData struct {
	TableID string `json:"tableId"`
}

type CreateTableData struct {
	TableID    string `json:"tableId,omitempty"`
	Name       string `json:"name"`
	SmallBlind int    `json:"smallBlind"`
	BigBlind   int    `json:"bigBlind"`
	BuyIn      int    `json:"buyIn"`
}

type JoinTableData struct {
	TableID string `json:"tableId"`
	Name    string `json:"name"`
	BuyIn   int    `json:"buyIn"`
}

type LeaveTableData struct {
	TableID  string `json:"tableId"`
	PlayerID string `json:"playerId"`
}

type PlayerActionData struct {
	TableID     string `json:"tableId"`
	PlayerID    string `json:"playerId"`
	Action      string `json:"action"`
	RaiseAmount int    `json:"raiseAmount,omitempty"`
}

type EndRoundData struct {
	TableID  string `json:"tableId"`
	WinnerID string `json:"winnerId"`
}

type UpdateChipsData struct {
	TableID  string `json:"tableId"`
	PlayerID string `json:"playerId"`
	Chips    *int   `json:"chips"`
}

type UpdateBlindsData struct {
	TableID    string `json:"tableId"`
	SmallBlind int    `json:"smallBlind"`
	BigBlind   int    `json:"bigBlind"`
}

type UpdatePositionsData struct {
	TableID   string   `json:"tableId"`
	PlayerIDs []string `json:"playerIds"`
}

type SetActiveData struct {
	TableID  string `json:"tableId"`
	PlayerID string `json:"playerId"`
	Active   *bool  `json:"active"`
}

// Responses

// ResultData answers every operation with the table as committed
type ResultData struct {
	Table    game.Table         `json:"table"`
	PlayerID string             `json:"playerId,omitempty"`
	Action   *game.ActionResult `json:"action,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
