package ledger

import (
	"encoding/json"
	"time"

	"gorm.io/gorm"

	"github.com/ksred/rtp-api/internal/types"
)

// TradeRecord is the stored form of one bank's trade leg. Records are
// scoped by the bank contract's account so multiple bank contracts can
// share one operational database without seeing each other's trades.
type TradeRecord struct {
	gorm.Model      `json:"-"`
	Account         string  `gorm:"uniqueIndex:idx_account_trade" json:"account"`
	TradeID         string  `gorm:"uniqueIndex:idx_account_trade" json:"trade_id"`
	Bank            string  `json:"bank"`
	Counterparty    string  `json:"counterparty"`
	Side            string  `json:"side"`
	Product         string  `json:"product"`
	Price           float64 `json:"price"`
	NotionalAmount  float64 `json:"notional_amount"`
	Details         string  `json:"details"` // full TradeDetails JSON
	MatchingStatus  string  `json:"matching_status"`
	MatchingMessage string  `json:"matching_message"`
	PaymentStatus   string  `json:"payment_status"`
	PaymentMessage  string  `json:"payment_message"`
	CreditConfirmed bool    `json:"credit_confirmed"`
	DebitConfirmed  bool    `json:"debit_confirmed"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func newTradeRecord(account, bank string, details types.TradeDetails) (*TradeRecord, error) {
	blob, err := json.Marshal(details)
	if err != nil {
		return nil, err
	}
	return &TradeRecord{
		Account:        account,
		TradeID:        details.TradeID,
		Bank:           bank,
		Counterparty:   details.Counterparty,
		Side:           string(details.Side),
		Product:        string(details.Product),
		Price:          details.Price,
		NotionalAmount: details.NotionalAmount,
		Details:        string(blob),
		MatchingStatus: types.StatusPending,
		PaymentStatus:  types.StatusPending,
	}, nil
}

// Trade converts the stored record back into the domain shape.
func (r *TradeRecord) Trade() (*types.Trade, error) {
	var details types.TradeDetails
	if err := json.Unmarshal([]byte(r.Details), &details); err != nil {
		return nil, err
	}
	return &types.Trade{
		Bank:         r.Bank,
		TradeDetails: details,
		MatchingStatus: types.MatchingStatus{
			Status:  r.MatchingStatus,
			Message: r.MatchingMessage,
		},
		PaymentStatus: types.PaymentStatus{
			Status:  r.PaymentStatus,
			Message: r.PaymentMessage,
		},
		Payments: types.Payments{
			Credit: r.CreditConfirmed,
			Debit:  r.DebitConfirmed,
		},
	}, nil
}
