// Package events defines the messages written to the outbox and fanned out
// to brokers and WebSocket clients.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	TopicOrders   = "orders"
	TopicRequests = "order_requests"
	TopicWallet   = "wallet"
)

var Topics = []string{TopicOrders, TopicRequests, TopicWallet}

type Event struct {
	Type     string          `json:"type"`
	EntityID string          `json:"entity_id"`
	Actor    string          `json:"actor"`
	At       time.Time       `json:"at"`
	Data     json.RawMessage `json:"data"`
}

// Envelope is what leaves the process: the topic travels with the event so
// consumers of a shared stream can route it.
type Envelope struct {
	Topic string `json:"topic"`
	Event
}

func New(eventType, entityID, actor string, at time.Time, data any) (Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event: %w", eventType, err)
	}
	return Event{Type: eventType, EntityID: entityID, Actor: actor, At: at, Data: raw}, nil
}

func Decode(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}
