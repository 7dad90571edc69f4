package matching_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksred/rtp-api/internal/matching"
	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/types"
)

const (
	bankA = "Deutsche Bank"
	bankB = "Sparkasse"
)

// fakeGateway records factory calls instead of driving a runtime.
type fakeGateway struct {
	mu sync.Mutex

	matchingCalls []matchingCall
	rejections    []rejectionCall
	paymentCalls  []paymentCall
}

type matchingCall struct {
	partnershipID, bankA, bankB, tradeID string
	status                               types.MatchingStatus
}

type rejectionCall struct {
	partnershipID, bankID, tradeID, reason string
}

type paymentCall struct {
	partnershipID, bankA, bankB, tradeID string
	status                               types.PaymentStatus
}

func resolved() *runtime.Promise {
	p, resolve := runtime.NewCompletion()
	resolve(runtime.Result{})
	return p
}

func (g *fakeGateway) SetMatchingStatus(partnershipID, bankAID, bankBID, tradeID string, status types.MatchingStatus) (*runtime.Promise, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.matchingCalls = append(g.matchingCalls, matchingCall{partnershipID, bankAID, bankBID, tradeID, status})
	return resolved(), nil
}

func (g *fakeGateway) RejectTrade(partnershipID, bankID, tradeID, reason string) (*runtime.Promise, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rejections = append(g.rejections, rejectionCall{partnershipID, bankID, tradeID, reason})
	return resolved(), nil
}

func (g *fakeGateway) SetPaymentStatus(partnershipID, bankAID, bankBID, tradeID string, status types.PaymentStatus) (*runtime.Promise, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paymentCalls = append(g.paymentCalls, paymentCall{partnershipID, bankAID, bankBID, tradeID, status})
	return resolved(), nil
}

func (g *fakeGateway) lastMatching() (matchingCall, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.matchingCalls) == 0 {
		return matchingCall{}, false
	}
	return g.matchingCalls[len(g.matchingCalls)-1], true
}

func (g *fakeGateway) lastRejection() (rejectionCall, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.rejections) == 0 {
		return rejectionCall{}, false
	}
	return g.rejections[len(g.rejections)-1], true
}

func (g *fakeGateway) lastPayment() (paymentCall, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.paymentCalls) == 0 {
		return paymentCall{}, false
	}
	return g.paymentCalls[len(g.paymentCalls)-1], true
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within timeout")
}

func startEngine(t *testing.T, gw matching.Gateway, matchWindow, paymentWindow time.Duration) chan types.Event {
	t.Helper()
	engine := matching.NewEngine(gw, matchWindow, paymentWindow, zerolog.Nop())
	events := make(chan types.Event, 16)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go engine.Run(ctx, events)
	return events
}

func legEvent(t *testing.T, bank, counterparty string, side types.Side, mutate func(*types.TradeDetails)) types.Event {
	t.Helper()

	details := types.TradeDetails{
		TradeID:          "T1",
		InstrumentID:     "EURUSD",
		AssetClass:       "FX",
		Product:          types.ProductSpot,
		Side:             side,
		Price:            1.0825,
		NotionalAmount:   5_000_000,
		Counterparty:     counterparty,
		SettlementMethod: "PvP",
		DeliveryDate:     "2026-09-03",
		DealtCcy:         "EUR",
		Ccy1ValueDate:    "2026-09-03",
		Ccy1PaymentAmt:   5_000_000,
		Ccy1PaymentCcy:   "EUR",
	}
	if mutate != nil {
		mutate(&details)
	}

	partnershipID, err := types.PartnershipID(bank, counterparty)
	if err != nil {
		t.Fatalf("partnership id: %v", err)
	}
	event, err := types.NewEvent(types.EventSendTrade, types.SendTrade{
		PartnershipID: partnershipID,
		BankID:        types.BankID(bank),
		Trade:         details,
	})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	return event
}

func confirmEvent(t *testing.T, bank, counterparty string, confirmation types.PaymentConfirmation) types.Event {
	t.Helper()
	partnershipID, err := types.PartnershipID(bank, counterparty)
	if err != nil {
		t.Fatalf("partnership id: %v", err)
	}
	event, err := types.NewEvent(types.EventConfirmPayment, types.ConfirmPayment{
		PartnershipID: partnershipID,
		BankID:        types.BankID(bank),
		TradeID:       "T1",
		Confirmation:  confirmation,
	})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	return event
}

func TestMatchingLegsConfirm(t *testing.T) {
	gw := &fakeGateway{}
	events := startEngine(t, gw, time.Minute, time.Minute)

	events <- legEvent(t, bankA, bankB, types.SideBuy, nil)
	events <- legEvent(t, bankB, bankA, types.SideSell, nil)

	waitFor(t, time.Second, func() bool {
		call, ok := gw.lastMatching()
		return ok && call.status.Status == types.StatusConfirmed
	})

	call, _ := gw.lastMatching()
	if call.tradeID != "T1" {
		t.Errorf("trade id: got %s", call.tradeID)
	}
	wantIDs := map[string]bool{types.BankID(bankA): true, types.BankID(bankB): true}
	if !wantIDs[call.bankA] || !wantIDs[call.bankB] || call.bankA == call.bankB {
		t.Errorf("bank ids: got %s / %s", call.bankA, call.bankB)
	}
}

func TestMismatchedPriceRejects(t *testing.T) {
	gw := &fakeGateway{}
	events := startEngine(t, gw, time.Minute, time.Minute)

	events <- legEvent(t, bankA, bankB, types.SideBuy, nil)
	events <- legEvent(t, bankB, bankA, types.SideSell, func(d *types.TradeDetails) {
		d.Price = 1.0999
	})

	waitFor(t, time.Second, func() bool {
		_, ok := gw.lastMatching()
		return ok
	})

	call, _ := gw.lastMatching()
	if call.status.Status != types.StatusRejected {
		t.Fatalf("status: got %s, want REJECTED", call.status.Status)
	}
	if !strings.Contains(call.status.Message, "price mismatch") {
		t.Errorf("reason does not name the price: %s", call.status.Message)
	}
}

func TestSameSideRejects(t *testing.T) {
	gw := &fakeGateway{}
	events := startEngine(t, gw, time.Minute, time.Minute)

	events <- legEvent(t, bankA, bankB, types.SideBuy, nil)
	events <- legEvent(t, bankB, bankA, types.SideBuy, nil)

	waitFor(t, time.Second, func() bool {
		_, ok := gw.lastMatching()
		return ok
	})

	call, _ := gw.lastMatching()
	if call.status.Status != types.StatusRejected {
		t.Fatalf("status: got %s, want REJECTED", call.status.Status)
	}
	if !strings.Contains(call.status.Message, "sides") {
		t.Errorf("reason does not name the sides: %s", call.status.Message)
	}
}

func TestSingleLegTimesOut(t *testing.T) {
	gw := &fakeGateway{}
	events := startEngine(t, gw, 30*time.Millisecond, time.Minute)

	events <- legEvent(t, bankA, bankB, types.SideBuy, nil)

	waitFor(t, 2*time.Second, func() bool {
		_, ok := gw.lastRejection()
		return ok
	})

	rejection, _ := gw.lastRejection()
	if rejection.bankID != types.BankID(bankA) {
		t.Errorf("rejected bank: got %s, want %s", rejection.bankID, types.BankID(bankA))
	}
	if rejection.tradeID != "T1" {
		t.Errorf("trade id: got %s", rejection.tradeID)
	}
	if rejection.reason == "" {
		t.Error("timeout rejection carries no reason")
	}

	if call, ok := gw.lastMatching(); ok {
		t.Errorf("unexpected two-sided status call: %+v", call)
	}
}

func TestPaymentConfirmsAfterAllFourFlags(t *testing.T) {
	gw := &fakeGateway{}
	events := startEngine(t, gw, time.Minute, time.Minute)

	events <- legEvent(t, bankA, bankB, types.SideBuy, nil)
	events <- legEvent(t, bankB, bankA, types.SideSell, nil)
	waitFor(t, time.Second, func() bool {
		call, ok := gw.lastMatching()
		return ok && call.status.Status == types.StatusConfirmed
	})

	events <- confirmEvent(t, bankA, bankB, types.ConfirmationCredit)
	events <- confirmEvent(t, bankA, bankB, types.ConfirmationDebit)
	events <- confirmEvent(t, bankB, bankA, types.ConfirmationCredit)

	// Three of four flags: no payment status yet.
	time.Sleep(50 * time.Millisecond)
	if _, ok := gw.lastPayment(); ok {
		t.Fatal("payment status set before all confirmations arrived")
	}

	events <- confirmEvent(t, bankB, bankA, types.ConfirmationDebit)

	waitFor(t, time.Second, func() bool {
		call, ok := gw.lastPayment()
		return ok && call.status.Status == types.StatusConfirmed
	})
}

func TestPaymentWindowExpiryRejects(t *testing.T) {
	gw := &fakeGateway{}
	events := startEngine(t, gw, time.Minute, 30*time.Millisecond)

	events <- legEvent(t, bankA, bankB, types.SideBuy, nil)
	events <- legEvent(t, bankB, bankA, types.SideSell, nil)
	waitFor(t, time.Second, func() bool {
		call, ok := gw.lastMatching()
		return ok && call.status.Status == types.StatusConfirmed
	})

	// Only one confirmation before the window closes.
	events <- confirmEvent(t, bankA, bankB, types.ConfirmationCredit)

	waitFor(t, 2*time.Second, func() bool {
		call, ok := gw.lastPayment()
		return ok && call.status.Status == types.StatusRejected
	})
}
