package types

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Domain event wire format. Every event is emitted exactly once at the
// moment of the corresponding state transition, as a single-line log
// record prefixed EVENT_JSON:, and is immutable after emission.
const (
	EventStandard  = "rtp"
	EventVersion   = "1.0.0"
	EventLogPrefix = "EVENT_JSON:"
)

// EventKind discriminates the event union.
type EventKind string

const (
	EventNewBank           EventKind = "new_bank"
	EventSendTrade         EventKind = "send_trade"
	EventSetMatchingStatus EventKind = "set_matching_status"
	EventConfirmPayment    EventKind = "confirm_payment"
	EventSetPaymentStatus  EventKind = "set_payment_status"
)

// Event is the versioned envelope around a domain event payload.
type Event struct {
	Standard string          `json:"standard"`
	Version  string          `json:"version"`
	Event    EventKind       `json:"event"`
	Data     json.RawMessage `json:"data"`
}

// NewBank is emitted once a bank's ledger contract has been fully
// provisioned and registered.
type NewBank struct {
	Bank   string `json:"bank"`
	BankID string `json:"bank_id"`
}

// SendTrade is emitted when a bank's ledger contract stores a new leg.
type SendTrade struct {
	PartnershipID string       `json:"partnership_id"`
	BankID        string       `json:"bank_id"`
	Trade         TradeDetails `json:"trade"`
}

// SetMatchingStatus is emitted by the factory after both banks' status
// calls have resolved.
type SetMatchingStatus struct {
	PartnershipID  string         `json:"partnership_id"`
	TradeID        string         `json:"trade_id"`
	MatchingStatus MatchingStatus `json:"matching_status"`
}

// ConfirmPayment is emitted when a bank records a credit or debit
// confirmation for one of its trades.
type ConfirmPayment struct {
	PartnershipID string              `json:"partnership_id"`
	BankID        string              `json:"bank_id"`
	TradeID       string              `json:"trade_id"`
	Confirmation  PaymentConfirmation `json:"confirmation"`
}

// SetPaymentStatus is emitted by the factory after both banks' payment
// status calls have resolved.
type SetPaymentStatus struct {
	PartnershipID string        `json:"partnership_id"`
	TradeID       string        `json:"trade_id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// NewEvent wraps a payload in the versioned envelope.
func NewEvent(kind EventKind, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return Event{
		Standard: EventStandard,
		Version:  EventVersion,
		Event:    kind,
		Data:     data,
	}, nil
}

// LogLine renders the event as the single-line EVENT_JSON record that
// contract calls append to their receipt logs.
func (e Event) LogLine() string {
	data, _ := json.Marshal(e)
	return EventLogPrefix + string(data)
}

// ParseEventLog decodes an EVENT_JSON log line. The second return value
// is false for log lines that are not rtp events.
func ParseEventLog(line string) (Event, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, EventLogPrefix) {
		return Event{}, false
	}

	var e Event
	if err := json.Unmarshal([]byte(strings.TrimSpace(line[len(EventLogPrefix):])), &e); err != nil {
		return Event{}, false
	}
	if e.Standard != EventStandard {
		return Event{}, false
	}
	return e, true
}

// DecodeData unmarshals the variant payload into out.
func (e Event) DecodeData(out any) error {
	if err := json.Unmarshal(e.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Event, err)
	}
	return nil
}
