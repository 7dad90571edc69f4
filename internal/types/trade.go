package types

// Side is the direction of a trade leg. Two legs of the same trade must
// carry opposite sides to match.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Opposite returns the counterparty side for a valid match.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Product is the FX product type of a trade.
type Product string

const (
	ProductSpot Product = "SPOT"
	ProductNDF  Product = "NDF"
	ProductFwd  Product = "FWD"
	ProductSwap Product = "SWAP"
)

// Status values shared by the matching and payment state machines.
// Both machines move PENDING -> {CONFIRMED | REJECTED | ERROR} and are
// terminal once they leave PENDING.
const (
	StatusPending   = "PENDING"
	StatusConfirmed = "CONFIRMED"
	StatusRejected  = "REJECTED"
	StatusError     = "ERROR"
)

// MatchingStatus is the leg-comparison state of a stored trade.
type MatchingStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// PaymentStatus is the credit/debit confirmation state of a stored trade.
type PaymentStatus struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// PaymentConfirmation selects which payment obligation a bank confirms.
type PaymentConfirmation string

const (
	ConfirmationCredit PaymentConfirmation = "CREDIT"
	ConfirmationDebit  PaymentConfirmation = "DEBIT"
)

// Payments tracks a bank's own credit and debit confirmations for a trade.
type Payments struct {
	Credit bool `json:"credit"`
	Debit  bool `json:"debit"`
}

// TradeDetails is one party's view of an FX trade leg. The trade ID is
// caller-supplied and correlates the two legs of a trade; it must match
// exactly between the two submissions.
type TradeDetails struct {
	TradeID          string  `json:"trade_id"`
	EventTimestamp   int64   `json:"event_timestamp"`
	RecvTime         int64   `json:"recv_time"`
	InstrumentID     string  `json:"instrument_id"`
	AssetClass       string  `json:"asset_class"`
	Product          Product `json:"product"`
	Side             Side    `json:"side"`
	Price            float64 `json:"price"`
	NotionalAmount   float64 `json:"notional_amount"`
	Counterparty     string  `json:"counterparty"`
	SettlementMethod string  `json:"settlement_method"`
	DeliveryDate     string  `json:"delivery_date"`
	DealtCcy         string  `json:"dealt_ccy"`

	Ccy1ValueDate   string  `json:"ccy1_value_date"`
	Ccy1PaymentAmt  float64 `json:"ccy1_payment_amt"`
	Ccy1PaymentCcy  string  `json:"ccy1_payment_ccy"`
	Ccy1PayerBookID *string `json:"ccy1_payer_book_id,omitempty"`
	Ccy1RecBookID   *string `json:"ccy1_rec_book_id,omitempty"`

	// ccy2 leg is only populated for swap-type products.
	Ccy2ValueDate   *string  `json:"ccy2_value_date,omitempty"`
	Ccy2PaymentAmt  *float64 `json:"ccy2_payment_amt,omitempty"`
	Ccy2PaymentCcy  *string  `json:"ccy2_payment_ccy,omitempty"`
	Ccy2PayerBookID *string  `json:"ccy2_payer_book_id,omitempty"`
	Ccy2RecBookID   *string  `json:"ccy2_rec_book_id,omitempty"`
}

// Trade is a bank's stored record for one of its own trade legs.
type Trade struct {
	Bank           string         `json:"bank"`
	TradeDetails   TradeDetails   `json:"trade_details"`
	MatchingStatus MatchingStatus `json:"matching_status"`
	PaymentStatus  PaymentStatus  `json:"payment_status"`
	Payments       Payments       `json:"payments"`
}
