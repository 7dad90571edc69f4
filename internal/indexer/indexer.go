// Package indexer mirrors ledger events into the operational store. It
// consumes sealed blocks in strict height order, filters receipts down
// to the factory and known bank accounts, and persists the decoded
// events together with a resumable cursor.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ksred/rtp-api/internal/observability"
	"github.com/ksred/rtp-api/internal/runtime"
	"github.com/ksred/rtp-api/internal/types"
)

// InfoStore is the external checkpoint store the indexer resumes from.
// Implemented by *InfoClient against the info service.
type InfoStore interface {
	GetInfo(ctx context.Context) (*Info, error)
	SetLastBlockHeight(ctx context.Context, height uint64) error
	InitBlockHeight(ctx context.Context, height uint64) error
	AddBank(ctx context.Context, bankID string) error
}

// TipFunc reports the ledger's current block height. Used to seed the
// cursor when the checkpoint store has none.
type TipFunc func() uint64

// Indexer is the single logical consumer over the block stream.
type Indexer struct {
	db      *Database
	info    InfoStore
	tip     TipFunc
	metrics *observability.Metrics
	logger  zerolog.Logger

	factoryAccount string
	// receivers is the in-place filter set: the factory account plus
	// one account per known bank. Mutated as new_bank events arrive; a
	// bank's events only become visible from the block its creation was
	// observed in, never retroactively.
	receivers map[string]struct{}
	cursor    uint64
}

func New(
	db *Database,
	info InfoStore,
	tip TipFunc,
	factoryAccount string,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Indexer {
	return &Indexer{
		db:             db,
		info:           info,
		tip:            tip,
		metrics:        metrics,
		logger:         logger,
		factoryAccount: factoryAccount,
		receivers:      map[string]struct{}{factoryAccount: {}},
	}
}

func (ix *Indexer) bankAccount(bankID string) string {
	return bankID + "." + ix.factoryAccount
}

// seed loads the cursor and filter set from the checkpoint store. A
// zero cursor falls back to the ledger tip: a fresh deployment starts
// at the present rather than replaying history it has no filter for.
func (ix *Indexer) seed(ctx context.Context) error {
	info, err := ix.info.GetInfo(ctx)
	if err != nil {
		return fmt.Errorf("fetch checkpoint: %w", err)
	}

	ix.cursor = info.LastBlockHeight
	if ix.cursor == 0 && ix.tip != nil {
		ix.cursor = ix.tip()
		if err := ix.info.InitBlockHeight(ctx, ix.cursor); err != nil {
			ix.logger.Warn().Err(err).Uint64("height", ix.cursor).Msg("failed to seed checkpoint at tip")
		}
	}

	for _, bankID := range info.BankIDs {
		ix.receivers[ix.bankAccount(bankID)] = struct{}{}
	}

	ix.logger.Info().
		Uint64("cursor", ix.cursor).
		Int("bank_ids", len(info.BankIDs)).
		Msg("indexer seeded")
	return nil
}

// Run consumes blocks until the context is cancelled or the channel
// closes. Blocks at or below the cursor are skipped, so resuming from
// a durable stream replays cleanly.
func (ix *Indexer) Run(ctx context.Context, blocks <-chan runtime.Block) error {
	if err := ix.seed(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case block, ok := <-blocks:
			if !ok {
				return nil
			}
			if block.Height <= ix.cursor {
				continue
			}
			if err := ix.processBlock(ctx, block); err != nil {
				return fmt.Errorf("block %d: %w", block.Height, err)
			}
		}
	}
}

func (ix *Indexer) processBlock(ctx context.Context, block runtime.Block) error {
	var records []EventRecord

	for _, receipt := range block.Receipts {
		if !receipt.Success {
			continue
		}
		if _, watched := ix.receivers[receipt.Receiver]; !watched {
			continue
		}

		for _, line := range receipt.Logs {
			event, ok := types.ParseEventLog(line)
			if !ok {
				continue
			}

			record := EventRecord{
				BlockHeight: block.Height,
				Receiver:    receipt.Receiver,
				Kind:        event.Event,
				Version:     event.Version,
				Payload:     string(event.Data),
			}
			ix.correlate(ctx, event, &record)
			records = append(records, record)
			ix.metrics.EventsIndexed.WithLabelValues(string(event.Event)).Inc()
		}
	}

	if err := ix.db.SaveBlock(block.Height, records); err != nil {
		return fmt.Errorf("persist events: %w", err)
	}
	if err := ix.info.SetLastBlockHeight(ctx, block.Height); err != nil {
		// The local checkpoint already advanced; the info service
		// catches up on the next block.
		ix.logger.Warn().Err(err).Uint64("height", block.Height).Msg("checkpoint post failed")
	}

	ix.cursor = block.Height
	ix.metrics.IndexerHeight.Set(float64(block.Height))

	if len(records) > 0 {
		ix.logger.Debug().
			Uint64("height", block.Height).
			Int("events", len(records)).
			Msg("block indexed")
	}
	return nil
}

// correlate lifts the query columns out of the payload and applies the
// filter-set side effect of new_bank events.
func (ix *Indexer) correlate(ctx context.Context, event types.Event, record *EventRecord) {
	switch event.Event {
	case types.EventNewBank:
		var payload types.NewBank
		if err := event.DecodeData(&payload); err != nil {
			ix.logger.Error().Err(err).Msg("failed to decode new_bank event")
			return
		}
		record.BankID = payload.BankID
		ix.receivers[ix.bankAccount(payload.BankID)] = struct{}{}
		if err := ix.info.AddBank(ctx, payload.BankID); err != nil {
			ix.logger.Warn().Err(err).Str("bank_id", payload.BankID).Msg("failed to persist new bank id")
		}
		ix.logger.Info().
			Str("bank", payload.Bank).
			Str("bank_id", payload.BankID).
			Msg("bank added to receiver filter")
	case types.EventSendTrade:
		var payload types.SendTrade
		if err := event.DecodeData(&payload); err != nil {
			return
		}
		record.PartnershipID = payload.PartnershipID
		record.BankID = payload.BankID
		record.TradeID = payload.Trade.TradeID
	case types.EventSetMatchingStatus:
		var payload types.SetMatchingStatus
		if err := event.DecodeData(&payload); err != nil {
			return
		}
		record.PartnershipID = payload.PartnershipID
		record.TradeID = payload.TradeID
	case types.EventConfirmPayment:
		var payload types.ConfirmPayment
		if err := event.DecodeData(&payload); err != nil {
			return
		}
		record.PartnershipID = payload.PartnershipID
		record.BankID = payload.BankID
		record.TradeID = payload.TradeID
	case types.EventSetPaymentStatus:
		var payload types.SetPaymentStatus
		if err := event.DecodeData(&payload); err != nil {
			return
		}
		record.PartnershipID = payload.PartnershipID
		record.TradeID = payload.TradeID
	}
}

// WaitForHeight blocks until the local checkpoint reaches height or the
// context expires. Test and simulation helper.
func (ix *Indexer) WaitForHeight(ctx context.Context, height uint64) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			h, err := ix.db.LastBlockHeight()
			if err != nil {
				return err
			}
			if h >= height {
				return nil
			}
		}
	}
}
