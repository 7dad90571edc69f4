package ledger_test

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ksred/rtp-api/internal/ledger"
	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/types"
)

const (
	factoryAccount = "factory.rtp"
	bankName       = "Deutsche Bank"
	counterparty   = "Sparkasse"
)

func newTestContract(t *testing.T) *ledger.Contract {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := db.AutoMigrate(&ledger.TradeRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	account := types.BankID(bankName) + "." + factoryAccount
	contract := ledger.New(account, ledger.NewDatabase(db), zerolog.Nop())

	res := invoke(t, contract, factoryAccount, "new", map[string]string{
		"factory": factoryAccount,
		"bank":    bankName,
	})
	if res.err != nil {
		t.Fatalf("init: %v", res.err)
	}
	return contract
}

type invokeResult struct {
	value []byte
	err   error
	logs  []string
}

func invoke(t *testing.T, c *ledger.Contract, caller, method string, args any) invokeResult {
	t.Helper()

	data, err := json.Marshal(args)
	if err != nil {
		t.Fatalf("marshal args: %v", err)
	}
	call := &runtime.Call{
		Caller:   caller,
		Receiver: types.BankID(bankName) + "." + factoryAccount,
		Method:   method,
		Args:     data,
	}
	value, invokeErr := c.Invoke(call)
	return invokeResult{value: value, err: invokeErr, logs: call.Logs()}
}

func sampleDetails(tradeID string) types.TradeDetails {
	return types.TradeDetails{
		TradeID:          tradeID,
		InstrumentID:     "EURUSD",
		AssetClass:       "FX",
		Product:          types.ProductSpot,
		Side:             types.SideBuy,
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
}

func TestPerformTradeStoresPendingLeg(t *testing.T) {
	contract := newTestContract(t)

	res := invoke(t, contract, factoryAccount, "perform_trade", sampleDetails("T1"))
	if res.err != nil {
		t.Fatalf("perform_trade: %v", res.err)
	}

	if len(res.logs) != 1 {
		t.Fatalf("expected one event log, got %d", len(res.logs))
	}
	event, ok := types.ParseEventLog(res.logs[0])
	if !ok || event.Event != types.EventSendTrade {
		t.Fatalf("expected send_trade event, got %v", res.logs[0])
	}

	got := invoke(t, contract, factoryAccount, "get_trade", map[string]string{"trade_id": "T1"})
	if got.err != nil {
		t.Fatalf("get_trade: %v", got.err)
	}

	var trade types.Trade
	if err := json.Unmarshal(got.value, &trade); err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	if trade.MatchingStatus.Status != types.StatusPending {
		t.Errorf("matching status: got %s, want PENDING", trade.MatchingStatus.Status)
	}
	if trade.PaymentStatus.Status != types.StatusPending {
		t.Errorf("payment status: got %s, want PENDING", trade.PaymentStatus.Status)
	}
	if trade.Payments.Credit || trade.Payments.Debit {
		t.Errorf("payments not zeroed: %+v", trade.Payments)
	}
	if trade.Bank != bankName {
		t.Errorf("bank: got %s, want %s", trade.Bank, bankName)
	}
}

func TestPerformTradeResubmissionReplaces(t *testing.T) {
	contract := newTestContract(t)

	first := sampleDetails("T1")
	if res := invoke(t, contract, factoryAccount, "perform_trade", first); res.err != nil {
		t.Fatalf("perform_trade: %v", res.err)
	}

	// Move the first submission out of PENDING, then resubmit.
	if res := invoke(t, contract, factoryAccount, "set_matching_status", map[string]any{
		"trade_id": "T1",
		"status":   types.MatchingStatus{Status: types.StatusRejected, Message: "price mismatch"},
	}); res.err != nil {
		t.Fatalf("set_matching_status: %v", res.err)
	}

	second := first
	second.Price = 1.0830
	if res := invoke(t, contract, factoryAccount, "perform_trade", second); res.err != nil {
		t.Fatalf("resubmit: %v", res.err)
	}

	got := invoke(t, contract, factoryAccount, "get_trade", map[string]string{"trade_id": "T1"})
	var trade types.Trade
	if err := json.Unmarshal(got.value, &trade); err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	if trade.TradeDetails.Price != 1.0830 {
		t.Errorf("price not replaced: got %v", trade.TradeDetails.Price)
	}
	if trade.MatchingStatus.Status != types.StatusPending {
		t.Errorf("resubmission did not reset matching status: %s", trade.MatchingStatus.Status)
	}
}

func TestCallerGate(t *testing.T) {
	contract := newTestContract(t)

	res := invoke(t, contract, "intruder.rtp", "perform_trade", sampleDetails("T1"))
	if !errors.Is(res.err, ledger.ErrNotFactory) {
		t.Errorf("expected ErrNotFactory, got %v", res.err)
	}
}

func TestSetMatchingStatusUnknownTrade(t *testing.T) {
	contract := newTestContract(t)

	res := invoke(t, contract, factoryAccount, "set_matching_status", map[string]any{
		"trade_id": "missing",
		"status":   types.MatchingStatus{Status: types.StatusConfirmed},
	})
	if !errors.Is(res.err, ledger.ErrInvalidTradeID) {
		t.Errorf("expected ErrInvalidTradeID, got %v", res.err)
	}
}

func TestConfirmPaymentSetsFlagsAndEmits(t *testing.T) {
	contract := newTestContract(t)
	if res := invoke(t, contract, factoryAccount, "perform_trade", sampleDetails("T1")); res.err != nil {
		t.Fatalf("perform_trade: %v", res.err)
	}

	res := invoke(t, contract, factoryAccount, "confirm_payment", map[string]any{
		"trade_id":     "T1",
		"confirmation": types.ConfirmationCredit,
	})
	if res.err != nil {
		t.Fatalf("confirm_payment: %v", res.err)
	}
	if len(res.logs) != 1 {
		t.Fatalf("expected confirm_payment event, got %d logs", len(res.logs))
	}
	event, _ := types.ParseEventLog(res.logs[0])
	if event.Event != types.EventConfirmPayment {
		t.Errorf("event kind: got %s", event.Event)
	}

	if res := invoke(t, contract, factoryAccount, "confirm_payment", map[string]any{
		"trade_id":     "T1",
		"confirmation": types.ConfirmationDebit,
	}); res.err != nil {
		t.Fatalf("confirm_payment debit: %v", res.err)
	}

	got := invoke(t, contract, factoryAccount, "get_trade", map[string]string{"trade_id": "T1"})
	var trade types.Trade
	if err := json.Unmarshal(got.value, &trade); err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	if !trade.Payments.Credit || !trade.Payments.Debit {
		t.Errorf("payment flags: %+v", trade.Payments)
	}
}

func TestDeleteAccountWipesTrades(t *testing.T) {
	contract := newTestContract(t)
	if res := invoke(t, contract, factoryAccount, "perform_trade", sampleDetails("T1")); res.err != nil {
		t.Fatalf("perform_trade: %v", res.err)
	}

	if res := invoke(t, contract, factoryAccount, "delete_account", nil); res.err != nil {
		t.Fatalf("delete_account: %v", res.err)
	}

	res := invoke(t, contract, factoryAccount, "get_trade", map[string]string{"trade_id": "T1"})
	if !errors.Is(res.err, ledger.ErrInvalidTradeID) {
		t.Errorf("expected ErrInvalidTradeID after wipe, got %v", res.err)
	}
}
