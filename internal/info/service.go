package info

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ksred/rtp-api/pkg/response"
)

// Info is the wire shape of the indexer checkpoint: the cursor plus the
// bank IDs the indexer was filtering on when it last ran.
type Info struct {
	LastBlockHeight uint64   `json:"last_block_height"`
	BankIDs         []string `json:"bank_ids"`
}

// Service owns the indexer checkpoint store and its HTTP surface.
type Service struct {
	db     *Database
	logger zerolog.Logger
}

func NewService(db *Database, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

// GetInfo returns the current checkpoint.
func (s *Service) GetInfo() (*Info, error) {
	state, err := s.db.GetState()
	if err != nil {
		return nil, err
	}
	ids, err := s.db.ListBankIDs()
	if err != nil {
		return nil, err
	}
	return &Info{LastBlockHeight: state.LastBlockHeight, BankIDs: ids}, nil
}

// GinHandlers contains HTTP handlers for the checkpoint endpoints
type GinHandlers struct {
	service *Service
}

// NewGinHandlers creates a new set of HTTP handlers for the checkpoint endpoints
func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetInfoHandler handles GET requests for the indexer checkpoint.
func (h *GinHandlers) GetInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		info, err := h.service.GetInfo()
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, info)
	}
}

// ResetInfoHandler handles DELETE requests that clear the checkpoint.
// Intended for test environments only.
func (h *GinHandlers) ResetInfoHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.service.db.Reset(); err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, gin.H{"status": "reset"})
	}
}

type heightRequest struct {
	LastBlockHeight uint64 `json:"last_block_height"`
}

// SetLastBlockHeightHandler handles POST requests checkpointing the cursor.
func (h *GinHandlers) SetLastBlockHeightHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req heightRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.db.SetLastBlockHeight(req.LastBlockHeight); err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, gin.H{"last_block_height": req.LastBlockHeight})
	}
}

// InitBlockHeightHandler handles POST requests seeding the cursor. The
// seed only takes effect when no cursor exists yet.
func (h *GinHandlers) InitBlockHeightHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req heightRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		applied, err := h.service.db.InitBlockHeight(req.LastBlockHeight)
		if err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, gin.H{"applied": applied})
	}
}

type newBankRequest struct {
	BankID string `json:"bank_id" binding:"required"`
}

// NewBankHandler handles POST requests adding a bank ID to the filter set.
func (h *GinHandlers) NewBankHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req newBankRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, err.Error())
			return
		}

		if err := h.service.db.AddBank(req.BankID); err != nil {
			response.InternalError(c, err.Error())
			return
		}
		response.Success(c, gin.H{"bank_id": req.BankID})
	}
}
