package matching

import (
	"strings"
	"testing"

	"github.com/ksred/rtp-api/internal/types"
)

func matchedLegs() (types.SendTrade, types.SendTrade) {
	bankA, bankB := "Deutsche Bank", "Sparkasse"
	partnershipID, _ := types.PartnershipID(bankA, bankB)

	details := types.TradeDetails{
		TradeID:          "T-900",
		InstrumentID:     "EURUSD",
		AssetClass:       "FX",
		Product:          types.ProductSpot,
		Side:             types.SideBuy,
		Price:            1.0825,
		NotionalAmount:   5_000_000,
		Counterparty:     bankB,
		SettlementMethod: "PvP",
		DeliveryDate:     "2026-09-03",
		DealtCcy:         "EUR",
		Ccy1ValueDate:    "2026-09-03",
		Ccy1PaymentAmt:   5_000_000,
		Ccy1PaymentCcy:   "EUR",
	}

	a := types.SendTrade{
		PartnershipID: partnershipID,
		BankID:        types.BankID(bankA),
		Trade:         details,
	}

	counter := details
	counter.Side = details.Side.Opposite()
	counter.Counterparty = bankA
	b := types.SendTrade{
		PartnershipID: partnershipID,
		BankID:        types.BankID(bankB),
		Trade:         counter,
	}
	return a, b
}

func TestCompareLegsMatch(t *testing.T) {
	a, b := matchedLegs()
	if reasons := compareLegs(a, b); len(reasons) != 0 {
		t.Fatalf("matched legs produced reasons: %v", reasons)
	}
	// Order of the legs must not matter.
	if reasons := compareLegs(b, a); len(reasons) != 0 {
		t.Fatalf("reversed legs produced reasons: %v", reasons)
	}
}

func TestCompareLegsMismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*types.SendTrade)
		want   string
	}{
		{"same side", func(s *types.SendTrade) { s.Trade.Side = types.SideBuy }, "sides are not opposite"},
		{"wrong counterparty", func(s *types.SendTrade) { s.Trade.Counterparty = "Commerzbank" }, "does not reference the other bank"},
		{"instrument", func(s *types.SendTrade) { s.Trade.InstrumentID = "GBPUSD" }, "instrument mismatch"},
		{"asset class", func(s *types.SendTrade) { s.Trade.AssetClass = "RATES" }, "asset class mismatch"},
		{"product", func(s *types.SendTrade) { s.Trade.Product = types.ProductFwd }, "product mismatch"},
		{"price", func(s *types.SendTrade) { s.Trade.Price += 0.01 }, "price mismatch"},
		{"notional", func(s *types.SendTrade) { s.Trade.NotionalAmount += 1 }, "notional mismatch"},
		{"settlement method", func(s *types.SendTrade) { s.Trade.SettlementMethod = "DvP" }, "settlement method mismatch"},
		{"delivery date", func(s *types.SendTrade) { s.Trade.DeliveryDate = "2026-09-04" }, "delivery date mismatch"},
		{"dealt ccy", func(s *types.SendTrade) { s.Trade.DealtCcy = "USD" }, "dealt currency mismatch"},
		{"ccy1 value date", func(s *types.SendTrade) { s.Trade.Ccy1ValueDate = "2026-09-04" }, "ccy1 value date mismatch"},
		{"ccy1 amount", func(s *types.SendTrade) { s.Trade.Ccy1PaymentAmt += 1 }, "ccy1 payment amount mismatch"},
		{"ccy1 ccy", func(s *types.SendTrade) { s.Trade.Ccy1PaymentCcy = "USD" }, "ccy1 payment currency mismatch"},
		{"ccy2 one-sided", func(s *types.SendTrade) {
			date := "2026-12-03"
			s.Trade.Ccy2ValueDate = &date
		}, "ccy2 value date mismatch"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, b := matchedLegs()
			tt.mutate(&b)
			reasons := compareLegs(a, b)
			if len(reasons) == 0 {
				t.Fatal("mutated leg produced no mismatch reasons")
			}
			joined := strings.Join(reasons, "; ")
			if !strings.Contains(joined, tt.want) {
				t.Errorf("reasons %q do not mention %q", joined, tt.want)
			}
		})
	}
}

func TestCompareLegsSwapCcy2Match(t *testing.T) {
	a, b := matchedLegs()
	farDate, farAmt, farCcy := "2026-12-03", 5_050_000.0, "USD"
	for _, leg := range []*types.SendTrade{&a, &b} {
		leg.Trade.Product = types.ProductSwap
		leg.Trade.Ccy2ValueDate = &farDate
		leg.Trade.Ccy2PaymentAmt = &farAmt
		leg.Trade.Ccy2PaymentCcy = &farCcy
	}
	if reasons := compareLegs(a, b); len(reasons) != 0 {
		t.Fatalf("matched swap legs produced reasons: %v", reasons)
	}
}
