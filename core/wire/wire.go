// Package wire implements the flat key=value message format exchanged
// between the engine and market participants. A message is the kind token
// followed by semicolon-separated fields:
//
//	SUBMIT;side=buy;qty=6;price=0.06
//
// The format carries no framing; it is the message-semantics layer only.
package wire

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/cnergy/cnergy/core/model"
)

// Kind identifies a message type.
type Kind string

const (
	KindSubmit    Kind = "SUBMIT"
	KindCancel    Kind = "CANCEL"
	KindAccept    Kind = "ACCEPT"
	KindFill      Kind = "FILL"
	KindReject    Kind = "REJECT"
	KindPriceTick Kind = "PRICE_TICK"
	KindAward     Kind = "AWARD"
	KindWeather   Kind = "WEATHER"
	KindFault     Kind = "FAULT"
)

// Reason enumerates REJECT reasons.
type Reason string

const (
	ReasonExpired      Reason = "expired"
	ReasonCancelled    Reason = "cancelled"
	ReasonInvalidPrice Reason = "invalid_price"
	ReasonMalformed    Reason = "malformed"
)

// Role enumerates AWARD roles.
type Role string

const (
	RoleProducer Role = "producer"
	RoleConsumer Role = "consumer"
)

// Message is a decoded wire message.
type Message struct {
	Kind   Kind
	Fields map[string]string
}

// Encode renders the message in wire form. Fields are emitted in sorted key
// order so that encoding is deterministic.
func (m Message) Encode() string {
	keys := make([]string, 0, len(m.Fields))
	for k := range m.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(string(m.Kind))
	for _, k := range keys {
		b.WriteByte(';')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(m.Fields[k])
	}
	return b.String()
}

// Decode parses a wire string into a Message.
func Decode(s string) (Message, error) {
	tokens := strings.Split(s, ";")
	if len(tokens) == 0 || tokens[0] == "" {
		return Message{}, fmt.Errorf("wire: empty message")
	}
	msg := Message{Kind: Kind(tokens[0]), Fields: make(map[string]string, len(tokens)-1)}
	for _, tok := range tokens[1:] {
		if tok == "" {
			continue
		}
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			return Message{}, fmt.Errorf("wire: malformed field %q", tok)
		}
		msg.Fields[k] = v
	}
	return msg, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func (m Message) floatField(key string) (float64, error) {
	raw, ok := m.Fields[key]
	if !ok {
		return 0, fmt.Errorf("wire: %s missing field %q", m.Kind, key)
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("wire: %s field %q: %w", m.Kind, key, err)
	}
	return f, nil
}

func (m Message) intField(key string) (int64, error) {
	raw, ok := m.Fields[key]
	if !ok {
		return 0, fmt.Errorf("wire: %s missing field %q", m.Kind, key)
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("wire: %s field %q: %w", m.Kind, key, err)
	}
	return n, nil
}

// Submit is a decoded SUBMIT message.
type Submit struct {
	Side      model.Side
	Qty       float64
	Unbounded bool
	Price     float64
}

// NewSubmit builds a SUBMIT message. An unbounded quantity is encoded as the
// literal "inf".
func NewSubmit(side model.Side, qty, price float64, unbounded bool) Message {
	q := formatFloat(qty)
	if unbounded {
		q = "inf"
	}
	return Message{Kind: KindSubmit, Fields: map[string]string{
		"side":  side.String(),
		"qty":   q,
		"price": formatFloat(price),
	}}
}

// ParseSubmit extracts a Submit from the message. "inf", "Infinity" and any
// value at or above the unbounded sentinel map to the unbounded variant; the
// remaining quantity is normalized to model.UnboundedQuantity.
func ParseSubmit(m Message) (Submit, error) {
	if m.Kind != KindSubmit {
		return Submit{}, fmt.Errorf("wire: expected SUBMIT, got %s", m.Kind)
	}
	side, err := model.ParseSide(m.Fields["side"])
	if err != nil {
		return Submit{}, err
	}
	price, err := m.floatField("price")
	if err != nil {
		return Submit{}, err
	}
	qty, err := m.floatField("qty")
	if err != nil {
		return Submit{}, err
	}
	s := Submit{Side: side, Qty: qty, Price: price}
	if math.IsInf(qty, 1) || qty >= model.UnboundedQuantity {
		s.Unbounded = true
		s.Qty = model.UnboundedQuantity
	}
	if math.IsNaN(qty) || math.IsInf(qty, -1) {
		return Submit{}, fmt.Errorf("wire: SUBMIT qty %v is not a valid quantity", qty)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return Submit{}, fmt.Errorf("wire: SUBMIT price %v is not a valid price", price)
	}
	return s, nil
}

// NewCancel builds a CANCEL message for the given order id.
func NewCancel(id int64) Message {
	return Message{Kind: KindCancel, Fields: map[string]string{"id": strconv.FormatInt(id, 10)}}
}

// ParseCancel extracts the order id from a CANCEL message.
func ParseCancel(m Message) (int64, error) {
	if m.Kind != KindCancel {
		return 0, fmt.Errorf("wire: expected CANCEL, got %s", m.Kind)
	}
	return m.intField("id")
}

// Accept is the engine's acknowledgment of an accepted order. It carries the
// engine-assigned id the submitter needs to cancel later, echoing side,
// quantity and price for correlation.
type Accept struct {
	ID    int64
	Side  model.Side
	Qty   float64
	Price float64
}

func NewAccept(o model.Order) Message {
	q := formatFloat(o.Qty)
	if o.Unbounded {
		q = "inf"
	}
	return Message{Kind: KindAccept, Fields: map[string]string{
		"id":    strconv.FormatInt(o.ID, 10),
		"side":  o.Side.String(),
		"qty":   q,
		"price": formatFloat(o.Price),
	}}
}

func ParseAccept(m Message) (Accept, error) {
	if m.Kind != KindAccept {
		return Accept{}, fmt.Errorf("wire: expected ACCEPT, got %s", m.Kind)
	}
	id, err := m.intField("id")
	if err != nil {
		return Accept{}, err
	}
	side, err := model.ParseSide(m.Fields["side"])
	if err != nil {
		return Accept{}, err
	}
	qty, err := m.floatField("qty")
	if err != nil {
		return Accept{}, err
	}
	price, err := m.floatField("price")
	if err != nil {
		return Accept{}, err
	}
	return Accept{ID: id, Side: side, Qty: qty, Price: price}, nil
}

// Fill notifies an order owner of a completed match.
type Fill struct {
	ID    int64
	Qty   float64
	Price float64
	From  model.Ref
}

func NewFill(id int64, qty, price float64, from model.Ref) Message {
	return Message{Kind: KindFill, Fields: map[string]string{
		"id":    strconv.FormatInt(id, 10),
		"qty":   formatFloat(qty),
		"price": formatFloat(price),
		"from":  string(from),
	}}
}

func ParseFill(m Message) (Fill, error) {
	if m.Kind != KindFill {
		return Fill{}, fmt.Errorf("wire: expected FILL, got %s", m.Kind)
	}
	id, err := m.intField("id")
	if err != nil {
		return Fill{}, err
	}
	qty, err := m.floatField("qty")
	if err != nil {
		return Fill{}, err
	}
	price, err := m.floatField("price")
	if err != nil {
		return Fill{}, err
	}
	return Fill{ID: id, Qty: qty, Price: price, From: model.Ref(m.Fields["from"])}, nil
}

// Reject is the terminal notification for expired, cancelled or invalid
// orders. Rejections of unparseable submissions carry id 0.
type Reject struct {
	ID     int64
	Reason Reason
}

func NewReject(id int64, reason Reason) Message {
	return Message{Kind: KindReject, Fields: map[string]string{
		"id":     strconv.FormatInt(id, 10),
		"reason": string(reason),
	}}
}

func ParseReject(m Message) (Reject, error) {
	if m.Kind != KindReject {
		return Reject{}, fmt.Errorf("wire: expected REJECT, got %s", m.Kind)
	}
	id, err := m.intField("id")
	if err != nil {
		return Reject{}, err
	}
	return Reject{ID: id, Reason: Reason(m.Fields["reason"])}, nil
}

// NewPriceTick builds the PRICE_TICK broadcast.
func NewPriceTick(price float64) Message {
	return Message{Kind: KindPriceTick, Fields: map[string]string{"price": formatFloat(price)}}
}

// ParsePriceTick extracts the broadcast price.
func ParsePriceTick(m Message) (float64, error) {
	if m.Kind != KindPriceTick {
		return 0, fmt.Errorf("wire: expected PRICE_TICK, got %s", m.Kind)
	}
	return m.floatField("price")
}

// Award notifies a batch-auction participant of its cleared quantity.
type Award struct {
	Qty   float64
	Price float64
	Role  Role
}

func NewAward(qty, price float64, role Role) Message {
	return Message{Kind: KindAward, Fields: map[string]string{
		"qty":   formatFloat(qty),
		"price": formatFloat(price),
		"role":  string(role),
	}}
}

func ParseAward(m Message) (Award, error) {
	if m.Kind != KindAward {
		return Award{}, fmt.Errorf("wire: expected AWARD, got %s", m.Kind)
	}
	qty, err := m.floatField("qty")
	if err != nil {
		return Award{}, err
	}
	price, err := m.floatField("price")
	if err != nil {
		return Award{}, err
	}
	return Award{Qty: qty, Price: price, Role: Role(m.Fields["role"])}, nil
}

// Weather is the environmental broadcast consumed by renewable producers.
type Weather struct {
	Sun  string
	Wind string
	Time string
	Hour int
}

func NewWeather(w Weather) Message {
	return Message{Kind: KindWeather, Fields: map[string]string{
		"sun":  w.Sun,
		"wind": w.Wind,
		"time": w.Time,
		"hour": strconv.Itoa(w.Hour),
	}}
}

func ParseWeather(m Message) (Weather, error) {
	if m.Kind != KindWeather {
		return Weather{}, fmt.Errorf("wire: expected WEATHER, got %s", m.Kind)
	}
	hour, err := m.intField("hour")
	if err != nil {
		return Weather{}, err
	}
	return Weather{
		Sun:  m.Fields["sun"],
		Wind: m.Fields["wind"],
		Time: m.Fields["time"],
		Hour: int(hour),
	}, nil
}

// NewFault builds the outage injection message.
func NewFault(outageTicks int) Message {
	return Message{Kind: KindFault, Fields: map[string]string{"outage": strconv.Itoa(outageTicks)}}
}

// ParseFault extracts the outage duration in ticks.
func ParseFault(m Message) (int, error) {
	if m.Kind != KindFault {
		return 0, fmt.Errorf("wire: expected FAULT, got %s", m.Kind)
	}
	n, err := m.intField("outage")
	return int(n), err
}
