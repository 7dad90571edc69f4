package factory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ksred/rtp-api/internal/types"
)

const defaultBankIDLimit = 20

// GetBankIDs returns a page of registered bank IDs.
func (s *Service) GetBankIDs(skip, limit int) ([]string, error) {
	if limit <= 0 {
		limit = defaultBankIDLimit
	}
	if skip < 0 {
		skip = 0
	}
	return s.db.ListBankIDs(skip, limit)
}

// GetBankID derives a bank's ID from its name. Pure function of the
// input; no registry lookup.
func (s *Service) GetBankID(bank string) string {
	return types.BankID(bank)
}

// GetPartnershipID derives the order-independent ID for a bank pair.
func (s *Service) GetPartnershipID(bankA, bankB string) (string, error) {
	return types.PartnershipID(bankA, bankB)
}

// GetTrade reads a trade record from the bank's ledger contract.
func (s *Service) GetTrade(ctx context.Context, bankID, tradeID string) (*types.Trade, error) {
	bank, err := s.db.GetBank(bankID)
	if err != nil {
		return nil, err
	}
	if bank == nil {
		return nil, ErrBankNotYetExists
	}

	args := map[string]string{"trade_id": tradeID}
	res := s.rt.Call(s.accountID, bank.Account, "get_trade", args, 0).Await(ctx)
	if res.Err != nil {
		return nil, res.Err
	}

	var trade types.Trade
	if err := json.Unmarshal(res.Value, &trade); err != nil {
		return nil, fmt.Errorf("decode trade: %w", err)
	}
	return &trade, nil
}

// Tip returns the runtime's current block height. Used by the indexer
// as the resumption fallback when no checkpoint exists.
func (s *Service) Tip() uint64 {
	return s.rt.Tip()
}
