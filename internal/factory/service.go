// Package factory implements the root coordinating registry: the sole
// entry point for provisioning bank ledger contracts and the only
// caller authorized to mutate them. Two-party status changes are issued
// as concurrent joined calls; the factory, not either bank, decides
// whether the change took on both sides.
package factory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/ksred/rtp-api/internal/observability"
	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/types"
)

var (
	ErrBankAlreadyExists   = errors.New("bank contract already exists")
	ErrBankNotYetExists    = errors.New("bank contract does not yet exist")
	ErrBankPendingDeletion = errors.New("bank contract is pending deletion")
	ErrNoContractCode      = errors.New("no contract code stored")
	ErrIDCollision         = errors.New("bank ID collision: derived ID already bound to a different name")
)

// NotEnoughDepositError carries the amounts so the caller can retry
// with a correct deposit.
type NotEnoughDepositError struct {
	Required uint64
	Actual   uint64
}

func (e *NotEnoughDepositError) Error() string {
	return fmt.Sprintf("not enough deposit. Required: %d; actual: %d", e.Required, e.Actual)
}

// Storage cost parameters for bank provisioning.
const (
	depositCoverAdditionalBytes = 160
	depositToCoverGas           = 1_000_000
)

// ContractConstructor builds the ledger contract instance deployed to a
// new bank sub-account.
type ContractConstructor func(account string) runtime.Contract

// Service is the factory registry and router.
type Service struct {
	rt          *runtime.Runtime
	db          *Database
	accountID   string
	newContract ContractConstructor
	logger      zerolog.Logger
	metrics     *observability.Metrics

	mu   sync.RWMutex
	code []byte
}

// NewService creates the factory service. Stored contract code and the
// bank registry are reloaded from the database, and each active bank's
// runtime account is re-created with its ledger contract, so a restart
// keeps both provisioning and trade routing working.
func NewService(
	rt *runtime.Runtime,
	gormDB *gorm.DB,
	accountID string,
	newContract ContractConstructor,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) (*Service, error) {
	db := NewDatabase(gormDB)
	code, err := db.GetContractCode()
	if err != nil {
		return nil, fmt.Errorf("load contract code: %w", err)
	}

	s := &Service{
		rt:          rt,
		db:          db,
		accountID:   accountID,
		newContract: newContract,
		logger:      logger.With().Str("component", "factory").Str("account", accountID).Logger(),
		metrics:     metrics,
		code:        code,
	}
	if err := s.rehydrate(); err != nil {
		return nil, fmt.Errorf("rehydrate bank registry: %w", err)
	}
	return s, nil
}

// rehydrate re-registers persisted banks on the fresh runtime. Accounts
// are created at genesis and the init calls are queued so they execute
// ahead of any trade routing once the runtime starts. Banks that were
// mid-deletion stay locked out; their half-deleted contracts need
// operator cleanup either way.
func (s *Service) rehydrate() error {
	banks, err := s.db.ListBanks()
	if err != nil {
		return err
	}

	for _, bank := range banks {
		if bank.Status != BankStatusActive {
			s.logger.Warn().
				Str("bank_id", bank.BankID).
				Str("status", bank.Status).
				Msg("bank not rehydrated; remains locked pending deletion")
			continue
		}

		s.rt.Genesis(bank.Account, 0, s.newContract(bank.Account))
		s.rt.Call(s.accountID, bank.Account, "new",
			map[string]string{"factory": s.accountID, "bank": bank.Bank}, 0)
		s.logger.Info().
			Str("bank_id", bank.BankID).
			Str("account", bank.Account).
			Msg("bank ledger rehydrated")
	}
	return nil
}

// AccountID returns the factory's root account ID.
func (s *Service) AccountID() string {
	return s.accountID
}

// StoreContract stores deployable bank contract code. Privileged.
func (s *Service) StoreContract(code []byte) error {
	if len(code) == 0 {
		return errors.New("no input")
	}
	if err := s.db.SaveContractCode(code); err != nil {
		return err
	}
	s.mu.Lock()
	s.code = code
	s.mu.Unlock()
	s.logger.Info().Int("code_bytes", len(code)).Msg("contract code stored")
	return nil
}

// ClearStorage wipes the registry and stored code. Privileged, test-only.
func (s *Service) ClearStorage() error {
	if err := s.db.ClearAll(); err != nil {
		return err
	}
	s.mu.Lock()
	s.code = nil
	s.mu.Unlock()
	s.metrics.BanksRegistered.Set(0)
	s.logger.Warn().Msg("factory storage cleared")
	return nil
}

// BankStorageCost computes the deposit a create_bank call must attach:
// stored code size plus an account-overhead buffer, priced per byte,
// plus a fixed gas buffer.
func (s *Service) BankStorageCost() uint64 {
	s.mu.RLock()
	codeLen := uint64(len(s.code))
	s.mu.RUnlock()
	return (codeLen+depositCoverAdditionalBytes)*s.rt.StorageByteCost() + depositToCoverGas
}

func (s *Service) bankAccount(bankID string) string {
	return bankID + "." + s.accountID
}

// CreateBank provisions a new bank ledger contract. Validation is
// synchronous; the multi-step deployment chain runs asynchronously and
// the returned promise resolves once the registry callback has run.
// The registry is only updated if every step succeeded; a partially
// created sub-account is not rolled back and needs operator cleanup.
func (s *Service) CreateBank(bank string, deposit uint64) (*runtime.Promise, error) {
	s.mu.RLock()
	code := s.code
	s.mu.RUnlock()
	if len(code) == 0 {
		return nil, ErrNoContractCode
	}

	if cost := s.BankStorageCost(); deposit < cost {
		return nil, &NotEnoughDepositError{Required: cost, Actual: deposit}
	}

	bankID := types.BankID(bank)
	existing, err := s.db.GetBank(bankID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Bank != bank {
			// Treated as a fatal invariant violation rather than a
			// silent overwrite.
			s.logger.Error().
				Str("bank_id", bankID).
				Str("existing", existing.Bank).
				Str("requested", bank).
				Msg("bank ID collision detected")
			return nil, ErrIDCollision
		}
		return nil, ErrBankAlreadyExists
	}

	account := s.bankAccount(bankID)
	done, resolve := runtime.NewCompletion()

	go func() {
		ctx := context.Background()
		fail := func(step string, err error) {
			s.metrics.ProvisionFailures.Inc()
			s.logger.Error().
				Err(err).
				Str("bank", bank).
				Str("account", account).
				Str("step", step).
				Msg("bank provisioning failed; sub-account not rolled back, manual cleanup required")
			resolve(runtime.Result{Err: fmt.Errorf("provisioning step %s: %w", step, err)})
		}

		if res := s.rt.CreateAccount(s.accountID, account).Await(ctx); res.Err != nil {
			fail("create_account", res.Err)
			return
		}
		if res := s.rt.Transfer(s.accountID, account, deposit/2).Await(ctx); res.Err != nil {
			fail("transfer", res.Err)
			return
		}
		if res := s.rt.DeployContract(s.accountID, account, code, s.newContract(account)).Await(ctx); res.Err != nil {
			fail("deploy_contract", res.Err)
			return
		}
		init := map[string]string{"factory": s.accountID, "bank": bank}
		if res := s.rt.Call(s.accountID, account, "new", init, 0).Await(ctx); res.Err != nil {
			fail("init", res.Err)
			return
		}

		args := map[string]string{"bank": bank, "bank_id": bankID}
		res := s.rt.Call(s.accountID, s.accountID, "on_create_bank", args, 0).Await(ctx)
		resolve(res)
	}()

	return done, nil
}

// PerformTrade routes a trade leg to the bank's ledger contract.
func (s *Service) PerformTrade(bankID string, details types.TradeDetails) (*runtime.Promise, error) {
	bank, err := s.db.GetBank(bankID)
	if err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, ErrBankNotYetExists
	}
	if bank.Status == BankStatusDeleting {
		return nil, ErrBankPendingDeletion
	}

	s.metrics.TradesSubmitted.WithLabelValues(bankID).Inc()
	return s.rt.Call(s.accountID, bank.Account, "perform_trade", details, 0), nil
}

type statusCallArgs struct {
	TradeID string `json:"trade_id"`
	Status  any    `json:"status"`
}

// SetMatchingStatus issues the same matching status to both banks
// concurrently. If either side fails, both sides are forced to ERROR so
// the two records never diverge, and the emitted event reflects ERROR.
// The returned promise resolves after the event has been emitted.
func (s *Service) SetMatchingStatus(
	partnershipID, bankAID, bankBID, tradeID string,
	status types.MatchingStatus,
) (*runtime.Promise, error) {
	accountA, err := s.activeBankAccount(bankAID)
	if err != nil {
		return nil, err
	}
	accountB, err := s.activeBankAccount(bankBID)
	if err != nil {
		return nil, err
	}

	done, resolve := runtime.NewCompletion()
	args := statusCallArgs{TradeID: tradeID, Status: status}
	pa := s.rt.Call(s.accountID, accountA, "set_matching_status", args, 0)
	pb := s.rt.Call(s.accountID, accountB, "set_matching_status", args, 0)

	runtime.Join(pa, pb).Then(func(ra, rb runtime.Result) {
		final := status
		if ra.Err != nil || rb.Err != nil {
			s.metrics.JoinCompensations.Inc()
			s.logger.Warn().
				AnErr("bank_a", ra.Err).
				AnErr("bank_b", rb.Err).
				Str("trade_id", tradeID).
				Msg("matching status join failed; forcing both sides to ERROR")

			final = types.MatchingStatus{Status: types.StatusError}
			errArgs := statusCallArgs{TradeID: tradeID, Status: final}
			ca := s.rt.Call(s.accountID, accountA, "set_matching_status", errArgs, 0)
			cb := s.rt.Call(s.accountID, accountB, "set_matching_status", errArgs, 0)
			if res := ca.Await(context.Background()); res.Err != nil {
				s.logger.Error().Err(res.Err).Str("bank_id", bankAID).Str("trade_id", tradeID).
					Msg("failed to force matching status to ERROR; ledgers may diverge")
			}
			if res := cb.Await(context.Background()); res.Err != nil {
				s.logger.Error().Err(res.Err).Str("bank_id", bankBID).Str("trade_id", tradeID).
					Msg("failed to force matching status to ERROR; ledgers may diverge")
			}
		}

		event := types.SetMatchingStatus{
			PartnershipID:  partnershipID,
			TradeID:        tradeID,
			MatchingStatus: final,
		}
		res := s.rt.Call(s.accountID, s.accountID, "on_set_matching_status", event, 0).Await(context.Background())
		s.metrics.MatchesResolved.WithLabelValues(final.Status).Inc()
		resolve(res)
	})

	return done, nil
}

// RejectTrade sets a rejected matching status on a single bank. Used by
// the matching engine when only one leg ever arrived: the counterparty
// has no trade record, so a two-sided join would force ERROR instead of
// the intended timeout rejection.
func (s *Service) RejectTrade(partnershipID, bankID, tradeID, reason string) (*runtime.Promise, error) {
	account, err := s.activeBankAccount(bankID)
	if err != nil {
		return nil, err
	}

	status := types.MatchingStatus{Status: types.StatusRejected, Message: reason}
	done, resolve := runtime.NewCompletion()
	p := s.rt.Call(s.accountID, account, "set_matching_status", statusCallArgs{TradeID: tradeID, Status: status}, 0)

	go func() {
		ctx := context.Background()
		if res := p.Await(ctx); res.Err != nil {
			s.logger.Error().Err(res.Err).Str("trade_id", tradeID).Msg("single-sided rejection failed")
			resolve(res)
			return
		}

		event := types.SetMatchingStatus{
			PartnershipID:  partnershipID,
			TradeID:        tradeID,
			MatchingStatus: status,
		}
		res := s.rt.Call(s.accountID, s.accountID, "on_set_matching_status", event, 0).Await(ctx)
		s.metrics.MatchesResolved.WithLabelValues(types.StatusRejected).Inc()
		resolve(res)
	}()

	return done, nil
}

// SetPaymentStatus mirrors SetMatchingStatus for the payment state
// machine, with the same both-or-ERROR consistency policy.
func (s *Service) SetPaymentStatus(
	partnershipID, bankAID, bankBID, tradeID string,
	status types.PaymentStatus,
) (*runtime.Promise, error) {
	accountA, err := s.activeBankAccount(bankAID)
	if err != nil {
		return nil, err
	}
	accountB, err := s.activeBankAccount(bankBID)
	if err != nil {
		return nil, err
	}

	done, resolve := runtime.NewCompletion()
	args := statusCallArgs{TradeID: tradeID, Status: status}
	pa := s.rt.Call(s.accountID, accountA, "set_payment_status", args, 0)
	pb := s.rt.Call(s.accountID, accountB, "set_payment_status", args, 0)

	runtime.Join(pa, pb).Then(func(ra, rb runtime.Result) {
		final := status
		if ra.Err != nil || rb.Err != nil {
			s.metrics.JoinCompensations.Inc()
			s.logger.Warn().
				AnErr("bank_a", ra.Err).
				AnErr("bank_b", rb.Err).
				Str("trade_id", tradeID).
				Msg("payment status join failed; forcing both sides to ERROR")

			final = types.PaymentStatus{Status: types.StatusError}
			errArgs := statusCallArgs{TradeID: tradeID, Status: final}
			ca := s.rt.Call(s.accountID, accountA, "set_payment_status", errArgs, 0)
			cb := s.rt.Call(s.accountID, accountB, "set_payment_status", errArgs, 0)
			if res := ca.Await(context.Background()); res.Err != nil {
				s.logger.Error().Err(res.Err).Str("bank_id", bankAID).Str("trade_id", tradeID).
					Msg("failed to force payment status to ERROR; ledgers may diverge")
			}
			if res := cb.Await(context.Background()); res.Err != nil {
				s.logger.Error().Err(res.Err).Str("bank_id", bankBID).Str("trade_id", tradeID).
					Msg("failed to force payment status to ERROR; ledgers may diverge")
			}
		}

		event := types.SetPaymentStatus{
			PartnershipID: partnershipID,
			TradeID:       tradeID,
			PaymentStatus: final,
		}
		res := s.rt.Call(s.accountID, s.accountID, "on_set_payment_status", event, 0).Await(context.Background())
		s.metrics.PaymentsResolved.WithLabelValues(final.Status).Inc()
		resolve(res)
	})

	return done, nil
}

type confirmCallArgs struct {
	TradeID      string                    `json:"trade_id"`
	Confirmation types.PaymentConfirmation `json:"confirmation"`
}

// ConfirmPayment issues a credit confirmation to the creditor and a
// debit confirmation to the debitor concurrently. A failure of either
// joined call has no defined recovery path: there is no sensible
// partial-credit state to roll back to, so it is logged as fatal and
// left to operator intervention.
func (s *Service) ConfirmPayment(creditorID, debitorID, tradeID string) (*runtime.Promise, error) {
	creditorAccount, err := s.activeBankAccount(creditorID)
	if err != nil {
		return nil, err
	}
	debitorAccount, err := s.activeBankAccount(debitorID)
	if err != nil {
		return nil, err
	}

	done, resolve := runtime.NewCompletion()
	pa := s.rt.Call(s.accountID, creditorAccount, "confirm_payment",
		confirmCallArgs{TradeID: tradeID, Confirmation: types.ConfirmationCredit}, 0)
	pb := s.rt.Call(s.accountID, debitorAccount, "confirm_payment",
		confirmCallArgs{TradeID: tradeID, Confirmation: types.ConfirmationDebit}, 0)

	runtime.Join(pa, pb).Then(func(ra, rb runtime.Result) {
		if ra.Err != nil || rb.Err != nil {
			err := errors.Join(ra.Err, rb.Err)
			s.logger.Error().
				Err(err).
				Str("trade_id", tradeID).
				Str("creditor_id", creditorID).
				Str("debitor_id", debitorID).
				Msg("confirm payment join failed; no recovery path, operator intervention required")
			resolve(runtime.Result{Err: err})
			return
		}
		resolve(runtime.Result{})
	})

	return done, nil
}

// RemoveBank tears down a bank's ledger contract and then removes it
// from the registry. While the teardown is in flight the bank is marked
// deleting and refuses new trade routing.
func (s *Service) RemoveBank(bankID string) (*runtime.Promise, error) {
	bank, err := s.db.GetBank(bankID)
	if err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, ErrBankNotYetExists
	}
	if bank.Status == BankStatusDeleting {
		return nil, ErrBankPendingDeletion
	}

	if err := s.db.UpdateBankStatus(bankID, BankStatusDeleting); err != nil {
		return nil, err
	}

	done, resolve := runtime.NewCompletion()
	go func() {
		ctx := context.Background()
		fail := func(step string, err error) {
			// The bank stays locked out; an operator has to resolve the
			// half-deleted contract either way.
			s.logger.Error().
				Err(err).
				Str("bank_id", bankID).
				Str("step", step).
				Msg("bank removal failed; bank remains locked pending deletion")
			resolve(runtime.Result{Err: fmt.Errorf("removal step %s: %w", step, err)})
		}

		if res := s.rt.Call(s.accountID, bank.Account, "delete_account", struct{}{}, 0).Await(ctx); res.Err != nil {
			fail("delete_storage", res.Err)
			return
		}
		if res := s.rt.DeleteAccount(s.accountID, bank.Account, s.accountID).Await(ctx); res.Err != nil {
			fail("delete_account", res.Err)
			return
		}

		args := map[string]string{"bank_id": bankID}
		res := s.rt.Call(s.accountID, s.accountID, "on_remove_bank", args, 0).Await(ctx)
		resolve(res)
	}()

	return done, nil
}

func (s *Service) activeBankAccount(bankID string) (string, error) {
	bank, err := s.db.GetBank(bankID)
	if err != nil {
		return "", err
	}
	if bank == nil {
		return "", ErrBankNotYetExists
	}
	if bank.Status == BankStatusDeleting {
		return "", ErrBankPendingDeletion
	}
	return bank.Account, nil
}
