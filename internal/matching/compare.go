package matching

import (
	"fmt"

	"github.com/ksred/rtp-api/internal/types"
)

// compareLegs checks two independently submitted legs of the same trade
// for agreement. It returns the list of mismatch reasons; an empty list
// means the legs match. The legs must carry opposite sides and each
// leg's counterparty must resolve to the other leg's bank.
func compareLegs(a, b types.SendTrade) []string {
	var reasons []string

	ta, tb := a.Trade, b.Trade

	if ta.Side == tb.Side {
		reasons = append(reasons, fmt.Sprintf("sides are not opposite: both %s", ta.Side))
	}
	if types.BankID(ta.Counterparty) != b.BankID {
		reasons = append(reasons, fmt.Sprintf("counterparty %q does not reference the other bank", ta.Counterparty))
	}
	if types.BankID(tb.Counterparty) != a.BankID {
		reasons = append(reasons, fmt.Sprintf("counterparty %q does not reference the other bank", tb.Counterparty))
	}

	if ta.InstrumentID != tb.InstrumentID {
		reasons = append(reasons, fmt.Sprintf("instrument mismatch: %s vs %s", ta.InstrumentID, tb.InstrumentID))
	}
	if ta.AssetClass != tb.AssetClass {
		reasons = append(reasons, fmt.Sprintf("asset class mismatch: %s vs %s", ta.AssetClass, tb.AssetClass))
	}
	if ta.Product != tb.Product {
		reasons = append(reasons, fmt.Sprintf("product mismatch: %s vs %s", ta.Product, tb.Product))
	}
	if ta.Price != tb.Price {
		reasons = append(reasons, fmt.Sprintf("price mismatch: %v vs %v", ta.Price, tb.Price))
	}
	if ta.NotionalAmount != tb.NotionalAmount {
		reasons = append(reasons, fmt.Sprintf("notional mismatch: %v vs %v", ta.NotionalAmount, tb.NotionalAmount))
	}
	if ta.SettlementMethod != tb.SettlementMethod {
		reasons = append(reasons, fmt.Sprintf("settlement method mismatch: %s vs %s", ta.SettlementMethod, tb.SettlementMethod))
	}
	if ta.DeliveryDate != tb.DeliveryDate {
		reasons = append(reasons, fmt.Sprintf("delivery date mismatch: %s vs %s", ta.DeliveryDate, tb.DeliveryDate))
	}
	if ta.DealtCcy != tb.DealtCcy {
		reasons = append(reasons, fmt.Sprintf("dealt currency mismatch: %s vs %s", ta.DealtCcy, tb.DealtCcy))
	}

	if ta.Ccy1ValueDate != tb.Ccy1ValueDate {
		reasons = append(reasons, fmt.Sprintf("ccy1 value date mismatch: %s vs %s", ta.Ccy1ValueDate, tb.Ccy1ValueDate))
	}
	if ta.Ccy1PaymentAmt != tb.Ccy1PaymentAmt {
		reasons = append(reasons, fmt.Sprintf("ccy1 payment amount mismatch: %v vs %v", ta.Ccy1PaymentAmt, tb.Ccy1PaymentAmt))
	}
	if ta.Ccy1PaymentCcy != tb.Ccy1PaymentCcy {
		reasons = append(reasons, fmt.Sprintf("ccy1 payment currency mismatch: %s vs %s", ta.Ccy1PaymentCcy, tb.Ccy1PaymentCcy))
	}

	// ccy2 leg only participates for swap-type products, where both
	// sides must populate it identically.
	if !eqStrPtr(ta.Ccy2ValueDate, tb.Ccy2ValueDate) {
		reasons = append(reasons, "ccy2 value date mismatch")
	}
	if !eqFloatPtr(ta.Ccy2PaymentAmt, tb.Ccy2PaymentAmt) {
		reasons = append(reasons, "ccy2 payment amount mismatch")
	}
	if !eqStrPtr(ta.Ccy2PaymentCcy, tb.Ccy2PaymentCcy) {
		reasons = append(reasons, "ccy2 payment currency mismatch")
	}

	return reasons
}

func eqStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func eqFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
