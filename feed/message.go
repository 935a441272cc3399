// Package feed implements FeedIngestor: the live order-book and trade
// stream per market, with snapshot/delta merge semantics, gap-triggered
// resync, and staleness tracking. Dialing and reconnecting are done by the
// caller.
package feed

import (
	"encoding/json"
	"fmt"

	"perpmm/market"
)

// MessageType tags the venue wire messages this ingestor understands.
type MessageType string

const (
	MessageSnapshot  MessageType = "SNAPSHOT"
	MessageDelta     MessageType = "DELTA"
	MessageTrade     MessageType = "TRADE"
	MessageHeartbeat MessageType = "HEARTBEAT"
)

// wireLevel is the venue's [price, size] pair convention.
type wireLevel [2]json.Number

func (l wireLevel) toLevel() (market.Level, error) {
	p, err := l[0].Float64()
	if err != nil {
		return market.Level{}, err
	}
	q, err := l[1].Float64()
	if err != nil {
		return market.Level{}, err
	}
	return market.Level{Price: p, Size: q}, nil
}

// envelope is the wire shape for every message on the book/trade streams.
type envelope struct {
	Type     MessageType `json:"type"`
	Market   string      `json:"market"`
	Sequence uint64      `json:"sequence"`
	Bids     []wireLevel `json:"bids,omitempty"`
	Asks     []wireLevel `json:"asks,omitempty"`
	TsMs     int64       `json:"ts_ms"`

	// Trade-only fields.
	Price   json.Number `json:"price,omitempty"`
	Qty     json.Number `json:"qty,omitempty"`
	Side    string      `json:"side,omitempty"`
	TradeID string      `json:"trade_id,omitempty"`
}

// Message is the parsed, typed form of one wire envelope.
type Message struct {
	Type     MessageType
	Market   string
	Sequence uint64
	Bids     []market.Level
	Asks     []market.Level
	TsMs     int64
	Trade    *market.Trade
}

// ParseMessage decodes one raw frame into a typed Message. A malformed
// message is a Protocol error, never silently defaulted.
func ParseMessage(raw []byte) (Message, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("feed: malformed message: %w", err)
	}

	msg := Message{Type: env.Type, Market: env.Market, Sequence: env.Sequence, TsMs: env.TsMs}

	switch env.Type {
	case MessageSnapshot, MessageDelta:
		bids, err := toLevels(env.Bids)
		if err != nil {
			return Message{}, fmt.Errorf("feed: malformed bid level: %w", err)
		}
		asks, err := toLevels(env.Asks)
		if err != nil {
			return Message{}, fmt.Errorf("feed: malformed ask level: %w", err)
		}
		msg.Bids, msg.Asks = bids, asks
	case MessageTrade:
		price, err := env.Price.Float64()
		if err != nil {
			return Message{}, fmt.Errorf("feed: malformed trade price: %w", err)
		}
		qty, err := env.Qty.Float64()
		if err != nil {
			return Message{}, fmt.Errorf("feed: malformed trade qty: %w", err)
		}
		side := market.AggressorBuy
		if env.Side == "SELL" {
			side = market.AggressorSell
		}
		msg.Trade = &market.Trade{
			TsMs:    env.TsMs,
			Price:   price,
			Qty:     qty,
			Side:    side,
			TradeID: env.TradeID,
		}
	case MessageHeartbeat:
		// no payload
	default:
		return Message{}, fmt.Errorf("feed: unknown message type %q", env.Type)
	}
	return msg, nil
}

func toLevels(raw []wireLevel) ([]market.Level, error) {
	out := make([]market.Level, 0, len(raw))
	for _, l := range raw {
		lvl, err := l.toLevel()
		if err != nil {
			return nil, err
		}
		out = append(out, lvl)
	}
	return out, nil
}
