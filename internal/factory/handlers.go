package factory

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ksred/rtp-api/internal/ledger"
	"github.com/ksred/rtp-api/internal/types"
	"github.com/ksred/rtp-api/pkg/response"
)

// GinHandlers contains HTTP handlers for factory endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for factory endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// handleError maps service errors onto HTTP responses.
func handleError(c *gin.Context, err error) {
	var depositErr *NotEnoughDepositError
	switch {
	case errors.As(err, &depositErr):
		response.WithCode(c, http.StatusBadRequest, response.ErrCodeNotEnoughDeposit, depositErr.Error())
	case errors.Is(err, ErrBankAlreadyExists),
		errors.Is(err, ErrIDCollision),
		errors.Is(err, ErrBankPendingDeletion):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrBankNotYetExists),
		errors.Is(err, ledger.ErrInvalidTradeID):
		response.NotFound(c, err.Error())
	case errors.Is(err, types.ErrInvalidBankInput),
		errors.Is(err, ErrNoContractCode):
		response.BadRequest(c, err.Error())
	default:
		response.InternalError(c, err.Error())
	}
}

// tokenScopedTo checks the bank_id claim the JWT middleware put on the
// context against the bank a route addresses. A token issued to one
// bank must not submit or read another bank's trades.
func tokenScopedTo(c *gin.Context, bankID string) bool {
	scope := c.GetString("bankID")
	return scope == "" || scope == bankID
}

// CreateBankRequest is the payload for registering a new bank.
type CreateBankRequest struct {
	Bank    string `json:"bank" binding:"required"`
	Deposit uint64 `json:"deposit" binding:"required"`
}

// CreateBankHandler handles POST requests to provision a new bank
// ledger. Provisioning is asynchronous: the response confirms the
// request was accepted, the new_bank event confirms completion.
func (h *GinHandlers) CreateBankHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CreateBankRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if _, err := h.service.CreateBank(req.Bank, req.Deposit); err != nil {
			handleError(c, err)
			return
		}

		response.Success(c, gin.H{
			"bank":    req.Bank,
			"bank_id": h.service.GetBankID(req.Bank),
			"status":  "provisioning",
		})
	}
}

// RemoveBankHandler handles DELETE requests to decommission a bank.
// URL parameter: bank_id
func (h *GinHandlers) RemoveBankHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bankID := c.Param("bank_id")
		if bankID == "" {
			response.BadRequest(c, "Bank ID is required")
			return
		}

		if _, err := h.service.RemoveBank(bankID); err != nil {
			handleError(c, err)
			return
		}

		response.Success(c, gin.H{"bank_id": bankID, "status": "removing"})
	}
}

// StoreContractHandler handles POST requests that upload the ledger
// contract code deployed to every new bank. The body is the raw code.
// Requires internal authentication.
func (h *GinHandlers) StoreContractHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		code, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.BadRequest(c, err.Error())
			return
		}
		if len(code) == 0 {
			response.BadRequest(c, "Contract code is required")
			return
		}

		if err := h.service.StoreContract(code); err != nil {
			handleError(c, err)
			return
		}

		response.Success(c, gin.H{"code_len": len(code)})
	}
}

// ClearStorageHandler handles DELETE requests that wipe the factory
// registry and stored contract code. Requires internal authentication.
func (h *GinHandlers) ClearStorageHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.ClearStorage(); err != nil {
			handleError(c, err)
			return
		}

		response.Success(c, gin.H{"status": "cleared"})
	}
}

// StorageCostHandler handles GET requests for the deposit required to
// provision a bank with the currently stored contract code.
func (h *GinHandlers) StorageCostHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, gin.H{"storage_cost": h.service.BankStorageCost()})
	}
}

// PerformTradeHandler handles POST requests that submit a trade to a
// bank's ledger. Resubmitting an existing trade ID replaces the trade.
// URL parameter: bank_id
func (h *GinHandlers) PerformTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bankID := c.Param("bank_id")
		if bankID == "" {
			response.BadRequest(c, "Bank ID is required")
			return
		}
		if !tokenScopedTo(c, bankID) {
			response.Forbidden(c, "token is not scoped to this bank")
			return
		}

		var details types.TradeDetails
		if err := c.ShouldBindJSON(&details); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if _, err := h.service.PerformTrade(bankID, details); err != nil {
			handleError(c, err)
			return
		}

		response.Success(c, gin.H{
			"bank_id":  bankID,
			"trade_id": details.TradeID,
			"status":   types.StatusPending,
		})
	}
}

// ConfirmPaymentRequest identifies the settled payment leg pair.
type ConfirmPaymentRequest struct {
	CreditorID string `json:"creditor_id" binding:"required"`
	DebitorID  string `json:"debitor_id" binding:"required"`
	TradeID    string `json:"trade_id" binding:"required"`
}

// ConfirmPaymentHandler handles POST requests reporting an observed
// payment: the creditor receives a credit confirmation, the debitor a
// debit confirmation. Requires internal authentication.
func (h *GinHandlers) ConfirmPaymentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ConfirmPaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if _, err := h.service.ConfirmPayment(req.CreditorID, req.DebitorID, req.TradeID); err != nil {
			handleError(c, err)
			return
		}

		response.Success(c, gin.H{"trade_id": req.TradeID, "status": "confirming"})
	}
}

// GetTradeHandler handles GET requests to read a trade from a bank's
// ledger. URL parameters: bank_id, trade_id
func (h *GinHandlers) GetTradeHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bankID := c.Param("bank_id")
		tradeID := c.Param("trade_id")
		if bankID == "" || tradeID == "" {
			response.BadRequest(c, "Bank ID and trade ID are required")
			return
		}
		if !tokenScopedTo(c, bankID) {
			response.Forbidden(c, "token is not scoped to this bank")
			return
		}

		trade, err := h.service.GetTrade(c.Request.Context(), bankID, tradeID)
		if err != nil {
			handleError(c, err)
			return
		}

		response.Success(c, trade)
	}
}

// GetBankIDsHandler handles GET requests listing registered bank IDs.
// Query parameters: skip, limit
func (h *GinHandlers) GetBankIDsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		skip, _ := strconv.Atoi(c.DefaultQuery("skip", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))

		ids, err := h.service.GetBankIDs(skip, limit)
		if err != nil {
			handleError(c, err)
			return
		}

		response.Success(c, gin.H{"bank_ids": ids})
	}
}

// GetBankIDHandler handles GET requests deriving the ID for a bank
// name. Query parameter: bank
func (h *GinHandlers) GetBankIDHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bank := c.Query("bank")
		if bank == "" {
			response.BadRequest(c, "Bank name is required")
			return
		}

		response.Success(c, gin.H{"bank_id": h.service.GetBankID(bank)})
	}
}

// GetPartnershipIDHandler handles GET requests deriving the partnership
// ID for a pair of bank names. Query parameters: bank_a, bank_b
func (h *GinHandlers) GetPartnershipIDHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		bankA := c.Query("bank_a")
		bankB := c.Query("bank_b")
		if bankA == "" || bankB == "" {
			response.BadRequest(c, "Both bank names are required")
			return
		}

		id, err := h.service.GetPartnershipID(bankA, bankB)
		if err != nil {
			handleError(c, err)
			return
		}

		response.Success(c, gin.H{"partnership_id": id})
	}
}

// TipHandler handles GET requests for the latest sealed block height.
func (h *GinHandlers) TipHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, gin.H{"block_height": h.service.Tip()})
	}
}
