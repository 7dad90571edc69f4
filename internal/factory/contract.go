package factory

import (
	"fmt"

	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/types"
)

// contract is the factory's own operation surface on the runtime. Only
// the factory's callback self-calls land here, which keeps registry
// mutation and event emission inside factory-owned receipts so the
// indexer observes them on the factory account.
type contract struct {
	s *Service
}

// Contract returns the runtime contract to register on the factory's
// root account at genesis.
func (s *Service) Contract() runtime.Contract {
	return &contract{s: s}
}

func (c *contract) Invoke(call *runtime.Call) ([]byte, error) {
	if call.Caller != c.s.accountID {
		return nil, fmt.Errorf("method %q is private to the factory", call.Method)
	}

	switch call.Method {
	case "on_create_bank":
		return nil, c.onCreateBank(call)
	case "on_set_matching_status":
		return nil, c.onSetMatchingStatus(call)
	case "on_set_payment_status":
		return nil, c.onSetPaymentStatus(call)
	case "on_remove_bank":
		return nil, c.onRemoveBank(call)
	default:
		return nil, fmt.Errorf("unknown method %q", call.Method)
	}
}

// onCreateBank is the only place a bank enters the registry: it runs
// after every provisioning step has succeeded, so a failed chain leaves
// no partial-success state behind.
func (c *contract) onCreateBank(call *runtime.Call) error {
	var args struct {
		Bank   string `json:"bank"`
		BankID string `json:"bank_id"`
	}
	if err := call.DecodeArgs(&args); err != nil {
		return err
	}

	if err := c.s.db.InsertBank(&Bank{
		BankID:  args.BankID,
		Bank:    args.Bank,
		Account: c.s.bankAccount(args.BankID),
		Status:  BankStatusActive,
	}); err != nil {
		return fmt.Errorf("register bank: %w", err)
	}

	event, err := types.NewEvent(types.EventNewBank, types.NewBank{
		Bank:   args.Bank,
		BankID: args.BankID,
	})
	if err != nil {
		return err
	}
	call.EmitLog(event.LogLine())
	c.s.metrics.EventsEmitted.WithLabelValues(string(types.EventNewBank)).Inc()

	if count, err := c.s.db.CountBanks(); err == nil {
		c.s.metrics.BanksRegistered.Set(float64(count))
	}

	c.s.logger.Info().
		Str("bank", args.Bank).
		Str("bank_id", args.BankID).
		Msg("bank registered")
	return nil
}

func (c *contract) onSetMatchingStatus(call *runtime.Call) error {
	var event types.SetMatchingStatus
	if err := call.DecodeArgs(&event); err != nil {
		return err
	}

	wrapped, err := types.NewEvent(types.EventSetMatchingStatus, event)
	if err != nil {
		return err
	}
	call.EmitLog(wrapped.LogLine())
	c.s.metrics.EventsEmitted.WithLabelValues(string(types.EventSetMatchingStatus)).Inc()
	return nil
}

func (c *contract) onSetPaymentStatus(call *runtime.Call) error {
	var event types.SetPaymentStatus
	if err := call.DecodeArgs(&event); err != nil {
		return err
	}

	wrapped, err := types.NewEvent(types.EventSetPaymentStatus, event)
	if err != nil {
		return err
	}
	call.EmitLog(wrapped.LogLine())
	c.s.metrics.EventsEmitted.WithLabelValues(string(types.EventSetPaymentStatus)).Inc()
	return nil
}

// onRemoveBank removes the registry entry only after the bank contract
// deletion has confirmed.
func (c *contract) onRemoveBank(call *runtime.Call) error {
	var args struct {
		BankID string `json:"bank_id"`
	}
	if err := call.DecodeArgs(&args); err != nil {
		return err
	}

	if err := c.s.db.DeleteBank(args.BankID); err != nil {
		return fmt.Errorf("deregister bank: %w", err)
	}

	if count, err := c.s.db.CountBanks(); err == nil {
		c.s.metrics.BanksRegistered.Set(float64(count))
	}

	c.s.logger.Info().Str("bank_id", args.BankID).Msg("bank removed from registry")
	return nil
}
