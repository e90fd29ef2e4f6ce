package registry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SnapshotStore persists encoded state snapshots; implementations live in
// pkg/storage.
type SnapshotStore interface {
	Save(ctx context.Context, key string, data []byte) error
	Load(ctx context.Context, key string) ([]byte, error)
}

// Handler exposes the registry over HTTP.
type Handler struct {
	service   *Service
	snapshots SnapshotStore
	logger    *zap.Logger
}

// NewHandler creates a new registry handler. The snapshot store may be nil
// when the deployment does not persist upgrade snapshots.
func NewHandler(service *Service, snapshots SnapshotStore, logger *zap.Logger) *Handler {
	return &Handler{service: service, snapshots: snapshots, logger: logger}
}

// RegisterRoutes registers the registry routes. Mutating routes run behind the
// caller-identity middleware; reads are public.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup, authenticated gin.HandlerFunc) {
	reg := router.Group("/registry")
	{
		// Public reads
		reg.GET("/tokens/:id", h.getToken)
		reg.GET("/tokens/:id/owners", h.getTokenOwners)
		reg.GET("/spaces/:id", h.getSpace)
		reg.GET("/owners/:account/balance", h.getBalance)
		reg.GET("/owners/:account/tokens", h.getOwnerTokens)
		reg.GET("/owners/:account/metadata", h.getOwnerTokenMetadata)
		reg.GET("/supply", h.getSupply)
		reg.GET("/stats", h.getStats)
		reg.GET("/metadata", h.getMetadata)

		// Custodian-gated mutations
		mut := reg.Group("", authenticated)
		mut.POST("/tokens/mint", h.mint)
		mut.POST("/tokens/:id/allocate", h.allocate)
		mut.POST("/tokens/:id/trade", h.trade)
		mut.POST("/tokens/:id/burn", h.burn)
		mut.POST("/spaces", h.createSpace)
		mut.PUT("/metadata/name", h.setName)
		mut.PUT("/metadata/symbol", h.setSymbol)
		mut.PUT("/metadata/logo", h.setLogo)
		mut.PUT("/metadata/custodians", h.setCustodians)
		mut.POST("/admin/audit", h.audit)
		mut.POST("/admin/snapshot/export", h.exportSnapshot)
		mut.POST("/admin/snapshot/import", h.importSnapshot)
	}
}

// =====================================================
// Mutating endpoints
// =====================================================

func (h *Handler) mint(c *gin.Context) {
	var params MintParams
	if err := c.ShouldBindJSON(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.service.Mint(c.Request.Context(), params)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"token_id": id})
}

type allocateRequest struct {
	Stakeholder AccountID `json:"stakeholder" binding:"required"`
	Units       uint64    `json:"units"`
}

func (h *Handler) allocate(c *gin.Context) {
	tokenID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.Allocate(c.Request.Context(), tokenID, req.Stakeholder, req.Units); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "allocated"})
}

type tradeRequest struct {
	Sender   AccountID `json:"sender" binding:"required"`
	Receiver AccountID `json:"receiver" binding:"required"`
	Units    uint64    `json:"units"`
}

func (h *Handler) trade(c *gin.Context) {
	tokenID, ok := h.pathID(c)
	if !ok {
		return
	}
	var req tradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.Trade(c.Request.Context(), tokenID, req.Sender, req.Receiver, req.Units); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "traded"})
}

func (h *Handler) burn(c *gin.Context) {
	tokenID, ok := h.pathID(c)
	if !ok {
		return
	}
	if err := h.service.Burn(c.Request.Context(), tokenID); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "burned"})
}

type createSpaceRequest struct {
	PricePerUnit uint64 `json:"price_per_unit"`
	TotalUnits   uint64 `json:"total_units"`
}

func (h *Handler) createSpace(c *gin.Context) {
	var req createSpaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	id, err := h.service.CreateSpace(c.Request.Context(), req.PricePerUnit, req.TotalUnits)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"space_id": id})
}

type setStringRequest struct {
	Value *string `json:"value"`
}

func (h *Handler) setName(c *gin.Context) {
	h.setMetadataField(c, h.service.SetName)
}

func (h *Handler) setSymbol(c *gin.Context) {
	h.setMetadataField(c, h.service.SetSymbol)
}

func (h *Handler) setLogo(c *gin.Context) {
	h.setMetadataField(c, h.service.SetLogo)
}

func (h *Handler) setMetadataField(c *gin.Context, set func(ctx context.Context, value *string) error) {
	var req setStringRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := set(c.Request.Context(), req.Value); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type setCustodiansRequest struct {
	Custodians []AccountID `json:"custodians"`
}

func (h *Handler) setCustodians(c *gin.Context) {
	var req setCustodiansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.SetCustodians(c.Request.Context(), req.Custodians); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "updated"})
}

type auditRequest struct {
	Repair bool `json:"repair"`
}

func (h *Handler) audit(c *gin.Context) {
	var req auditRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	report, err := h.service.AuditStats(c.Request.Context(), req.Repair)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

type snapshotRequest struct {
	Key string `json:"key" binding:"required"`
}

func (h *Handler) exportSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot store not configured"})
		return
	}
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := json.Marshal(h.service.Export())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.snapshots.Save(c.Request.Context(), req.Key, data); err != nil {
		h.logger.Error("snapshot save failed", zap.String("key", req.Key), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "exported", "key": req.Key, "bytes": len(data)})
}

func (h *Handler) importSnapshot(c *gin.Context) {
	if h.snapshots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "snapshot store not configured"})
		return
	}
	var req snapshotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := h.snapshots.Load(c.Request.Context(), req.Key)
	if err != nil {
		h.logger.Error("snapshot load failed", zap.String("key", req.Key), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	var snap StableState
	if err := json.Unmarshal(data, &snap); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.Import(c.Request.Context(), snap); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "imported", "key": req.Key})
}

// =====================================================
// Read endpoints
// =====================================================

func (h *Handler) getToken(c *gin.Context) {
	tokenID, ok := h.pathID(c)
	if !ok {
		return
	}
	tok, err := h.service.GetTokenMetadata(tokenID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *Handler) getTokenOwners(c *gin.Context) {
	tokenID, ok := h.pathID(c)
	if !ok {
		return
	}
	owners, err := h.service.OwnerOf(tokenID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, owners)
}

func (h *Handler) getSpace(c *gin.Context) {
	spaceID, ok := h.pathID(c)
	if !ok {
		return
	}
	space, err := h.service.GetSpace(spaceID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, space)
}

func (h *Handler) getBalance(c *gin.Context) {
	account := AccountID(c.Param("account"))
	balance, err := h.service.BalanceOf(account)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "units": balance})
}

func (h *Handler) getOwnerTokens(c *gin.Context) {
	account := AccountID(c.Param("account"))
	ids, err := h.service.OwnerTokenIdentifiers(account)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account": account, "token_ids": ids})
}

func (h *Handler) getOwnerTokenMetadata(c *gin.Context) {
	account := AccountID(c.Param("account"))
	tokens, err := h.service.OwnerTokenMetadata(account)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokens)
}

func (h *Handler) getSupply(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"total_supply": h.service.TotalSupply()})
}

func (h *Handler) getStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetStats())
}

func (h *Handler) getMetadata(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.GetMetadata())
}

// =====================================================
// Helpers
// =====================================================

func (h *Handler) pathID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return 0, false
	}
	return id, true
}

// writeError maps domain errors onto HTTP statuses with a payload the DAO
// client can decode back into the taxonomy.
func (h *Handler) writeError(c *gin.Context, err error) {
	if errors.Is(err, ErrNotCustodian) {
		c.JSON(http.StatusForbidden, gin.H{"error": gin.H{"code": "NotCustodian", "message": err.Error()}})
		return
	}
	nerr, ok := AsNftError(err)
	if !ok {
		h.logger.Error("unexpected registry error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "Internal", "message": err.Error()}})
		return
	}
	c.JSON(statusFor(nerr.Code), gin.H{"error": nerr})
}

func statusFor(code ErrorCode) int {
	switch code {
	case ErrCodeTokenNotFound, ErrCodeOwnerNotFound, ErrCodeOperatorNotFound, ErrCodeTxNotFound:
		return http.StatusNotFound
	case ErrCodeExistedNFT:
		return http.StatusConflict
	case ErrCodeUnitsNotAvailable, ErrCodeInsufficientUnits, ErrCodeSelfTransfer,
		ErrCodeSelfApprove, ErrCodeSenderNotOwner:
		return http.StatusUnprocessableEntity
	case ErrCodeUnauthorizedOwner, ErrCodeUnauthorizedOperator:
		return http.StatusForbidden
	default:
		return http.StatusBadRequest
	}
}
