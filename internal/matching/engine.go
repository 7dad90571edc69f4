package matching

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/types"
)

// Gateway is the factory surface the engine drives. Implemented by
// *factory.Service.
type Gateway interface {
	SetMatchingStatus(partnershipID, bankAID, bankBID, tradeID string, status types.MatchingStatus) (*runtime.Promise, error)
	RejectTrade(partnershipID, bankID, tradeID, reason string) (*runtime.Promise, error)
	SetPaymentStatus(partnershipID, bankAID, bankBID, tradeID string, status types.PaymentStatus) (*runtime.Promise, error)
}

// pendingMatch buffers the first leg of a trade until the counterparty
// leg arrives or the window expires. The resolved flag distinguishes a
// normal Delete eviction from a window expiry, since the cache fires
// OnEvicted for both.
type pendingMatch struct {
	mu       sync.Mutex
	resolved bool
	leg      types.SendTrade
}

// paymentTracker accumulates a trade's credit/debit confirmations after
// a confirmed match. All four booleans must flip within the payment
// window or the payment is rejected.
type paymentTracker struct {
	mu       sync.Mutex
	resolved bool

	partnershipID string
	tradeID       string
	bankA         string
	bankB         string
	payments      map[string]*types.Payments
}

func (t *paymentTracker) complete() bool {
	for _, p := range t.payments {
		if !p.Credit || !p.Debit {
			return false
		}
	}
	return true
}

// Engine is the off-ledger matching and settlement process. It consumes
// domain events, correlates the two legs of each trade, and drives the
// matching and payment state machines through the Gateway.
type Engine struct {
	gw     Gateway
	logger zerolog.Logger

	matchWindow   time.Duration
	paymentWindow time.Duration

	pending  *cache.Cache
	payments *cache.Cache
}

// NewEngine creates a matching engine. matchWindow bounds how long a
// single leg waits for its counterparty; paymentWindow bounds how long
// a confirmed trade waits for all four payment confirmations.
func NewEngine(gw Gateway, matchWindow, paymentWindow time.Duration, logger zerolog.Logger) *Engine {
	e := &Engine{
		gw:            gw,
		logger:        logger,
		matchWindow:   matchWindow,
		paymentWindow: paymentWindow,
		pending:       cache.New(matchWindow, matchWindow/2),
		payments:      cache.New(paymentWindow, paymentWindow/2),
	}
	e.pending.OnEvicted(e.onMatchExpired)
	e.payments.OnEvicted(e.onPaymentExpired)
	return e
}

// Run consumes events until the channel closes or the context is
// cancelled. It is the only goroutine that inserts into the pending
// buffers; evictions race with it and are serialized per entry.
func (e *Engine) Run(ctx context.Context, events <-chan types.Event) {
	e.logger.Info().
		Dur("match_window", e.matchWindow).
		Dur("payment_window", e.paymentWindow).
		Msg("matching engine started")

	for {
		select {
		case <-ctx.Done():
			e.logger.Info().Msg("matching engine stopped")
			return
		case event, ok := <-events:
			if !ok {
				e.logger.Info().Msg("event stream closed, matching engine stopped")
				return
			}
			e.handleEvent(event)
		}
	}
}

func (e *Engine) handleEvent(event types.Event) {
	switch event.Event {
	case types.EventSendTrade:
		var payload types.SendTrade
		if err := event.DecodeData(&payload); err != nil {
			e.logger.Error().Err(err).Msg("failed to decode send_trade event")
			return
		}
		e.handleSendTrade(payload)
	case types.EventConfirmPayment:
		var payload types.ConfirmPayment
		if err := event.DecodeData(&payload); err != nil {
			e.logger.Error().Err(err).Msg("failed to decode confirm_payment event")
			return
		}
		e.handleConfirmPayment(payload)
	}
}

func tradeKey(partnershipID, tradeID string) string {
	return partnershipID + ":" + tradeID
}

func (e *Engine) handleSendTrade(leg types.SendTrade) {
	key := tradeKey(leg.PartnershipID, leg.Trade.TradeID)

	entry, found := e.pending.Get(key)
	if !found {
		e.pending.Set(key, &pendingMatch{leg: leg}, cache.DefaultExpiration)
		e.logger.Debug().
			Str("trade_id", leg.Trade.TradeID).
			Str("bank_id", leg.BankID).
			Msg("first leg buffered, awaiting counterparty")
		return
	}

	match := entry.(*pendingMatch)
	match.mu.Lock()
	if match.resolved {
		// The buffered entry is mid-eviction. This leg starts a fresh
		// window rather than being dropped without a timeout tracker.
		match.mu.Unlock()
		e.pending.Set(key, &pendingMatch{leg: leg}, cache.DefaultExpiration)
		e.logger.Debug().
			Str("trade_id", leg.Trade.TradeID).
			Str("bank_id", leg.BankID).
			Msg("leg re-buffered after concurrent window expiry")
		return
	}
	first := match.leg

	if first.BankID == leg.BankID {
		// Resubmission by the same bank replaces its buffered leg.
		match.leg = leg
		match.mu.Unlock()
		e.logger.Debug().
			Str("trade_id", leg.Trade.TradeID).
			Str("bank_id", leg.BankID).
			Msg("buffered leg replaced by resubmission")
		return
	}

	match.resolved = true
	match.mu.Unlock()
	e.pending.Delete(key)

	e.resolveMatch(first, leg)
}

func (e *Engine) resolveMatch(a, b types.SendTrade) {
	tradeID := a.Trade.TradeID
	reasons := compareLegs(a, b)

	status := types.MatchingStatus{Status: types.StatusConfirmed, Message: "legs matched"}
	if len(reasons) > 0 {
		status = types.MatchingStatus{
			Status:  types.StatusRejected,
			Message: strings.Join(reasons, "; "),
		}
	}

	e.logger.Info().
		Str("trade_id", tradeID).
		Str("partnership_id", a.PartnershipID).
		Str("status", status.Status).
		Str("message", status.Message).
		Msg("trade legs compared")

	if _, err := e.gw.SetMatchingStatus(a.PartnershipID, a.BankID, b.BankID, tradeID, status); err != nil {
		e.logger.Error().Err(err).Str("trade_id", tradeID).Msg("failed to set matching status")
		return
	}

	if status.Status == types.StatusConfirmed {
		e.openPaymentWindow(a.PartnershipID, tradeID, a.BankID, b.BankID)
	}
}

func (e *Engine) onMatchExpired(key string, entry interface{}) {
	match, ok := entry.(*pendingMatch)
	if !ok {
		return
	}

	match.mu.Lock()
	if match.resolved {
		match.mu.Unlock()
		return
	}
	match.resolved = true
	leg := match.leg
	match.mu.Unlock()

	e.logger.Warn().
		Str("trade_id", leg.Trade.TradeID).
		Str("bank_id", leg.BankID).
		Msg("counterparty leg never arrived, rejecting trade")

	_, err := e.gw.RejectTrade(leg.PartnershipID, leg.BankID, leg.Trade.TradeID,
		"matching window expired without a counterparty leg")
	if err != nil {
		e.logger.Error().Err(err).Str("trade_id", leg.Trade.TradeID).Msg("failed to reject timed-out trade")
	}
}

func (e *Engine) openPaymentWindow(partnershipID, tradeID, bankA, bankB string) {
	tracker := &paymentTracker{
		partnershipID: partnershipID,
		tradeID:       tradeID,
		bankA:         bankA,
		bankB:         bankB,
		payments: map[string]*types.Payments{
			bankA: {},
			bankB: {},
		},
	}
	e.payments.Set(tradeKey(partnershipID, tradeID), tracker, cache.DefaultExpiration)
}

func (e *Engine) handleConfirmPayment(payload types.ConfirmPayment) {
	key := tradeKey(payload.PartnershipID, payload.TradeID)
	entry, found := e.payments.Get(key)
	if !found {
		e.logger.Warn().
			Str("trade_id", payload.TradeID).
			Str("bank_id", payload.BankID).
			Msg("payment confirmation for unknown or expired trade")
		return
	}

	tracker := entry.(*paymentTracker)
	tracker.mu.Lock()
	if tracker.resolved {
		tracker.mu.Unlock()
		return
	}

	payments, ok := tracker.payments[payload.BankID]
	if !ok {
		tracker.mu.Unlock()
		e.logger.Warn().
			Str("trade_id", payload.TradeID).
			Str("bank_id", payload.BankID).
			Msg("payment confirmation from a bank outside the trade")
		return
	}

	switch payload.Confirmation {
	case types.ConfirmationCredit:
		payments.Credit = true
	case types.ConfirmationDebit:
		payments.Debit = true
	}

	if !tracker.complete() {
		tracker.mu.Unlock()
		return
	}
	tracker.resolved = true
	tracker.mu.Unlock()
	e.payments.Delete(key)

	e.logger.Info().
		Str("trade_id", tracker.tradeID).
		Str("partnership_id", tracker.partnershipID).
		Msg("all payment confirmations received")

	status := types.PaymentStatus{Status: types.StatusConfirmed, Message: "all payment legs confirmed"}
	_, err := e.gw.SetPaymentStatus(tracker.partnershipID, tracker.bankA, tracker.bankB, tracker.tradeID, status)
	if err != nil {
		e.logger.Error().Err(err).Str("trade_id", tracker.tradeID).Msg("failed to confirm payment status")
	}
}

func (e *Engine) onPaymentExpired(key string, entry interface{}) {
	tracker, ok := entry.(*paymentTracker)
	if !ok {
		return
	}

	tracker.mu.Lock()
	if tracker.resolved {
		tracker.mu.Unlock()
		return
	}
	tracker.resolved = true
	tracker.mu.Unlock()

	e.logger.Warn().
		Str("trade_id", tracker.tradeID).
		Str("partnership_id", tracker.partnershipID).
		Msg("payment window expired without full confirmation")

	status := types.PaymentStatus{
		Status:  types.StatusRejected,
		Message: "payment window expired without full confirmation",
	}
	_, err := e.gw.SetPaymentStatus(tracker.partnershipID, tracker.bankA, tracker.bankB, tracker.tradeID, status)
	if err != nil {
		e.logger.Error().Err(err).Str("trade_id", tracker.tradeID).Msg("failed to reject timed-out payment")
	}
}
