// internal/events/types.go
package events

import (
	"time"
)

// EventType represents the type of event.
type EventType string

const (
	// Pool events
	PoolCreated EventType = "pool.created"

	// Trade events
	TradeSettled EventType = "trade.settled"
	TradeAborted EventType = "trade.aborted"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

// PoolCreatedEvent is emitted when a pool is registered and provisioned.
type PoolCreatedEvent struct {
	BaseEvent
	Pool      string
	MintA     string
	MintB     string
	Authority string
	Reserve   string
}

// TradeSettledEvent is emitted after a trade commits.
type TradeSettledEvent struct {
	BaseEvent
	TradeID    string
	Pool       string
	Trader     string
	Mint       string
	Direction  string // "buy", "sell"
	Leg        string
	Strategy   string
	Amount     uint64
	TotalPrice uint64
	Supply     uint64 // supply the trade was priced at
}

// TradeAbortedEvent is emitted when a trade is rejected or rolled back.
type TradeAbortedEvent struct {
	BaseEvent
	Pool      string
	Trader    string
	Direction string
	Leg       string
	Strategy  string
	Amount    uint64
	Kind      string
	Phase     string
	Error     error
}
