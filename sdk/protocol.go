// Package sdk provides the client toolkit for writing seat-selling bots:
// the wire protocol shared with the server, a WebSocket client, and a Bot
// runner that drives a Handler implementation through a match.
//
// Bots identify themselves with query parameters on the /ws URL (bot for
// the bot id, match to target a named match); the server answers with a
// welcome message carrying the final assignments.
package sdk

import (
	"encoding/json"
	"time"
)

// Message is the envelope for every WebSocket frame between client and
// server. Data holds the type-specific payload.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp,omitempty"`
}

// MessageType identifies the payload carried by a Message.
type MessageType string

// Client to server message types
const (
	MessageTypeAction MessageType = "action"
	MessageTypeState  MessageType = "state"
)

// Server to client message types. MessageTypeState doubles as the response
// type for a state request.
const (
	MessageTypeWelcome       MessageType = "welcome"
	MessageTypeMatchStart    MessageType = "match_start"
	MessageTypeActionRequest MessageType = "action_request"
	MessageTypePriceSet      MessageType = "price_set"
	MessageTypeRoundResult   MessageType = "round_result"
	MessageTypeMatchEnd      MessageType = "match_end"
	MessageTypeError         MessageType = "error"
)

// String returns the string representation of the message type.
func (mt MessageType) String() string {
	return string(mt)
}

// WelcomeData is sent by the server once a connection is accepted and the
// bot has been assigned to a match.
type WelcomeData struct {
	BotID   string `json:"bot_id"`
	MatchID string `json:"match_id"`
	Seat    int    `json:"seat"`
	Players int    `json:"players"`
}

// SeatInfo names the occupant of one seat.
type SeatInfo struct {
	Seat int    `json:"seat"`
	Name string `json:"name"`
}

// MatchStartData is sent when all seats are filled and play begins.
// YourSeat is -1 for watchers.
type MatchStartData struct {
	MatchID      string     `json:"match_id"`
	YourSeat     int        `json:"your_seat"`
	Players      []SeatInfo `json:"players"`
	Rounds       int        `json:"rounds"`
	InitialPrice int        `json:"initial_price"`
	LatePrice    int        `json:"late_price"`
}

// ActionInfo describes one entry of the legal action menu. Quantity is set
// for seat-buying actions, Price for price-setting actions.
type ActionInfo struct {
	ID       int    `json:"id"`
	Label    string `json:"label"`
	Quantity int    `json:"quantity,omitempty"`
	Price    int    `json:"price,omitempty"`
}

// ViewData is the requesting seat's view of the match: its own inventory and
// running total plus the public price and sales history. Prices and Sold are
// indexed by seat; the acting round's price row may be partial.
type ViewData struct {
	Round      int     `json:"round"`
	Phase      string  `json:"phase"`
	Bought     int     `json:"bought"`
	Prices     [][]int `json:"prices"`
	Sold       [][]int `json:"sold"`
	RunningPnl float64 `json:"running_pnl"`
}

// ActionRequestData asks a bot to choose one of the legal action ids before
// the deadline. The menu labels each id.
type ActionRequestData struct {
	MatchID       string       `json:"match_id"`
	Seat          int          `json:"seat"`
	Phase         string       `json:"phase"`
	Round         int          `json:"round"`
	LegalActions  []int        `json:"legal_actions"`
	Menu          []ActionInfo `json:"menu"`
	View          ViewData     `json:"view"`
	TimeRemaining int          `json:"time_remaining"`
}

// ActionData is the client's reply to an action request.
type ActionData struct {
	MatchID   string `json:"match_id"`
	Action    int    `json:"action"`
	Reasoning string `json:"reasoning,omitempty"`
}

// PriceSetData is broadcast when a seat commits its price for the round.
// Prices are public the moment they are set.
type PriceSetData struct {
	MatchID string `json:"match_id"`
	Seat    int    `json:"seat"`
	Round   int    `json:"round"`
	Price   int    `json:"price"`
}

// RoundResultData is broadcast after demand resolves. Prices and Sold are
// indexed by seat and cover the completed round only.
type RoundResultData struct {
	MatchID   string `json:"match_id"`
	Round     int    `json:"round"`
	Prices    []int  `json:"prices"`
	Sold      []int  `json:"sold"`
	TotalSold int    `json:"total_sold"`
}

// StandingInfo is one row of the final standings. Inventories are revealed
// once the match is over.
type StandingInfo struct {
	Seat   int     `json:"seat"`
	Name   string  `json:"name"`
	Bought int     `json:"bought"`
	Sold   int     `json:"sold"`
	Pnl    float64 `json:"pnl"`
}

// MatchEndData is sent when the match reaches its final round. Returns is
// indexed by seat; Standings is sorted best first.
type MatchEndData struct {
	MatchID   string         `json:"match_id"`
	Rounds    int            `json:"rounds"`
	Returns   []float64      `json:"returns"`
	Standings []StandingInfo `json:"standings"`
}

// StateData answers a state request with the requester's view rendered as
// text. Other seats' inventories stay hidden.
type StateData struct {
	MatchID string `json:"match_id"`
	State   string `json:"state"`
}

// ErrorData reports a protocol or match error.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewMessage wraps a payload in a Message envelope with the current
// timestamp.
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Message{
		Type:      msgType,
		Data:      jsonData,
		Timestamp: time.Now().UTC(),
	}, nil
}
