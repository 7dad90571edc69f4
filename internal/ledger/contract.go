// Package ledger implements the per-bank ledger contract: isolated
// storage for exactly one bank's trade legs and their matching/payment
// state. Every mutating operation is gated on the factory being the
// caller; banks never write each other's records.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/types"
)

var (
	ErrNotFactory     = errors.New("only the factory contract can call this function")
	ErrInvalidTradeID = errors.New("trade ID does not exist")
	ErrNotInitialized = errors.New("contract is not initialized")
)

// Contract is one bank's ledger contract instance, registered on the
// runtime under <bank_id>.<factory>.
type Contract struct {
	account string
	factory string
	bank    string
	db      *Database
	logger  zerolog.Logger
}

// New constructs a bank ledger contract bound to its runtime account.
// The factory and bank fields are set by the init call during
// provisioning.
func New(account string, db *Database, logger zerolog.Logger) *Contract {
	return &Contract{
		account: account,
		db:      db,
		logger:  logger.With().Str("component", "bank_ledger").Str("account", account).Logger(),
	}
}

type initArgs struct {
	Factory string `json:"factory"`
	Bank    string `json:"bank"`
}

type setMatchingStatusArgs struct {
	TradeID string               `json:"trade_id"`
	Status  types.MatchingStatus `json:"status"`
}

type confirmPaymentArgs struct {
	TradeID      string                    `json:"trade_id"`
	Confirmation types.PaymentConfirmation `json:"confirmation"`
}

type setPaymentStatusArgs struct {
	TradeID string              `json:"trade_id"`
	Status  types.PaymentStatus `json:"status"`
}

type getTradeArgs struct {
	TradeID string `json:"trade_id"`
}

// Invoke dispatches a remote call into the contract.
func (c *Contract) Invoke(call *runtime.Call) ([]byte, error) {
	if call.Method == "new" {
		return nil, c.init(call)
	}

	if c.factory == "" {
		return nil, ErrNotInitialized
	}
	if call.Caller != c.factory {
		return nil, ErrNotFactory
	}

	switch call.Method {
	case "perform_trade":
		return nil, c.performTrade(call)
	case "set_matching_status":
		return nil, c.setMatchingStatus(call)
	case "confirm_payment":
		return nil, c.confirmPayment(call)
	case "set_payment_status":
		return nil, c.setPaymentStatus(call)
	case "get_trade":
		return c.getTrade(call)
	case "delete_account":
		return nil, c.deleteAccount()
	default:
		return nil, fmt.Errorf("unknown method %q", call.Method)
	}
}

func (c *Contract) init(call *runtime.Call) error {
	if c.factory != "" {
		return errors.New("contract is already initialized")
	}
	var args initArgs
	if err := call.DecodeArgs(&args); err != nil {
		return err
	}
	c.factory = args.Factory
	c.bank = args.Bank
	c.logger.Info().Str("bank", args.Bank).Msg("bank ledger contract initialized")
	return nil
}

// performTrade stores a new leg with pending statuses, replacing any
// prior record with the same trade ID, and emits send_trade.
func (c *Contract) performTrade(call *runtime.Call) error {
	var details types.TradeDetails
	if err := call.DecodeArgs(&details); err != nil {
		return err
	}

	partnershipID, err := types.PartnershipID(c.bank, details.Counterparty)
	if err != nil {
		return err
	}

	record, err := newTradeRecord(c.account, c.bank, details)
	if err != nil {
		return fmt.Errorf("encode trade details: %w", err)
	}
	if err := c.db.ReplaceTrade(record); err != nil {
		return fmt.Errorf("store trade: %w", err)
	}

	event, err := types.NewEvent(types.EventSendTrade, types.SendTrade{
		PartnershipID: partnershipID,
		BankID:        types.BankID(c.bank),
		Trade:         details,
	})
	if err != nil {
		return err
	}
	call.EmitLog(event.LogLine())

	c.logger.Info().
		Str("trade_id", details.TradeID).
		Str("partnership_id", partnershipID).
		Str("side", string(details.Side)).
		Msg("trade leg stored")
	return nil
}

// setMatchingStatus overwrites matching state. No event is emitted at
// this layer; the factory emits once both banks' calls have resolved.
func (c *Contract) setMatchingStatus(call *runtime.Call) error {
	var args setMatchingStatusArgs
	if err := call.DecodeArgs(&args); err != nil {
		return err
	}

	record, err := c.db.GetTrade(c.account, args.TradeID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrInvalidTradeID
	}
	return c.db.UpdateMatchingStatus(c.account, args.TradeID, args.Status)
}

func (c *Contract) confirmPayment(call *runtime.Call) error {
	var args confirmPaymentArgs
	if err := call.DecodeArgs(&args); err != nil {
		return err
	}

	record, err := c.db.GetTrade(c.account, args.TradeID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrInvalidTradeID
	}

	if err := c.db.SetPaymentFlag(c.account, args.TradeID, args.Confirmation); err != nil {
		return err
	}

	partnershipID, err := types.PartnershipID(c.bank, record.Counterparty)
	if err != nil {
		return err
	}

	event, err := types.NewEvent(types.EventConfirmPayment, types.ConfirmPayment{
		PartnershipID: partnershipID,
		BankID:        types.BankID(c.bank),
		TradeID:       args.TradeID,
		Confirmation:  args.Confirmation,
	})
	if err != nil {
		return err
	}
	call.EmitLog(event.LogLine())
	return nil
}

func (c *Contract) setPaymentStatus(call *runtime.Call) error {
	var args setPaymentStatusArgs
	if err := call.DecodeArgs(&args); err != nil {
		return err
	}

	record, err := c.db.GetTrade(c.account, args.TradeID)
	if err != nil {
		return err
	}
	if record == nil {
		return ErrInvalidTradeID
	}
	return c.db.UpdatePaymentStatus(c.account, args.TradeID, args.Status)
}

func (c *Contract) getTrade(call *runtime.Call) ([]byte, error) {
	var args getTradeArgs
	if err := call.DecodeArgs(&args); err != nil {
		return nil, err
	}

	record, err := c.db.GetTrade(c.account, args.TradeID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, ErrInvalidTradeID
	}
	trade, err := record.Trade()
	if err != nil {
		return nil, err
	}
	return json.Marshal(trade)
}

// deleteAccount wipes the contract's trade storage ahead of the runtime
// account deletion that follows it.
func (c *Contract) deleteAccount() error {
	if err := c.db.DeleteAccountTrades(c.account); err != nil {
		return err
	}
	c.logger.Info().Str("bank", c.bank).Msg("bank ledger storage deleted")
	return nil
}
