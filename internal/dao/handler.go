package dao

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"propspace/space-portal/space-portal-backend/internal/auth"
	"propspace/space-portal/space-portal-backend/internal/registry"
)

// Handler exposes the DAO orchestrator over HTTP.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new DAO handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterRoutes registers the DAO routes. All of them require an
// authenticated caller.
func (h *Handler) RegisterRoutes(router *gin.RouterGroup) {
	group := router.Group("/dao")
	{
		group.POST("/spaces", h.createSpace)
		group.GET("/spaces/:id", h.getSpace)
		group.POST("/spaces/:id/mint", h.requestMint)
		group.POST("/trades", h.trade)
		group.GET("/tokens/:id", h.getToken)
		group.GET("/mint-requests/:id", h.getMintRequest)
	}
}

func (h *Handler) createSpace(c *gin.Context) {
	var details SpaceDetails
	if err := c.ShouldBindJSON(&details); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	caller, _ := auth.CallerFromContext(c.Request.Context())
	listing, err := h.service.CreateSpace(c.Request.Context(), details, caller)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, listing)
}

func (h *Handler) getSpace(c *gin.Context) {
	id, ok := h.pathUUID(c)
	if !ok {
		return
	}
	listing, err := h.service.GetListing(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, listing)
}

type mintRequestBody struct {
	Properties     []registry.Property `json:"properties,omitempty"`
	RequestedUnits uint64              `json:"requested_units"`
}

func (h *Handler) requestMint(c *gin.Context) {
	id, ok := h.pathUUID(c)
	if !ok {
		return
	}
	var body mintRequestBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	record, err := h.service.RequestMint(c.Request.Context(), id, body.Properties, body.RequestedUnits)
	if err != nil {
		// The journal record, when one exists, travels with the failure so
		// the caller can see what was attempted.
		h.writeErrorWithRecord(c, err, record)
		return
	}
	c.JSON(http.StatusCreated, record)
}

type tradeBody struct {
	TokenID  uint64             `json:"token_id"`
	Sender   registry.AccountID `json:"sender" binding:"required"`
	Receiver registry.AccountID `json:"receiver" binding:"required"`
	Units    uint64             `json:"units"`
}

func (h *Handler) trade(c *gin.Context) {
	var body tradeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.service.TradeUnits(c.Request.Context(), body.TokenID, body.Sender, body.Receiver, body.Units); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "traded"})
}

func (h *Handler) getToken(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return
	}
	tok, err := h.service.GetToken(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tok)
}

func (h *Handler) getMintRequest(c *gin.Context) {
	id, ok := h.pathUUID(c)
	if !ok {
		return
	}
	record, err := h.service.GetMintRequest(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) pathUUID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid identifier"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	h.writeErrorWithRecord(c, err, nil)
}

func (h *Handler) writeErrorWithRecord(c *gin.Context, err error, record *MintRequest) {
	var serr *ServiceError
	if !errors.As(err, &serr) {
		h.logger.Error("unexpected dao error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	body := gin.H{"error": serr}
	if record != nil {
		body["mint_request"] = record
	}
	c.JSON(statusForType(serr.Type), body)
}

func statusForType(t ErrorType) int {
	switch t {
	case ErrorTypeUnauthorized:
		return http.StatusForbidden
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeNftRejected:
		return http.StatusUnprocessableEntity
	case ErrorTypeRemoteCallFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
