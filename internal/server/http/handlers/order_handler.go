package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	domainErrors "github.com/polkiloo/offramp/internal/domain/errors"
	"github.com/polkiloo/offramp/internal/domain/model"
	"github.com/polkiloo/offramp/internal/pkg/amount"
	"github.com/polkiloo/offramp/internal/server/http/dto"
)

// IdempotencyKeyHeader may carry the creation idempotency key instead of the body.
const IdempotencyKeyHeader = "Idempotency-Key"

// OrderHandler manages order-related endpoints.
type OrderHandler struct {
	facade SettlementFacade
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(facade SettlementFacade) *OrderHandler {
	return &OrderHandler{facade: facade}
}

// Create handles POST /api/orders.
func (h *OrderHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domainErrors.Invalid("body", "malformed JSON"))
		return
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		key = strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
	}

	order, created, err := h.facade.CreateOrder(c.Request.Context(), model.CreateOrderInput{
		PayoutTargetID: req.PayoutTargetID,
		Amount:         req.Amount,
		Side:           model.AmountSide(req.Side),
		Token:          req.Token,
		PayerAddress:   req.PayerAddress,
		IdempotencyKey: key,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.Header("Location", "/api/orders/"+order.ID)
	if !created {
		c.JSON(http.StatusOK, toOrderResponse(order))
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(order))
}

// Get handles GET /api/orders/:id.
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.facade.Order(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// Proof handles POST /api/orders/:id/proof.
func (h *OrderHandler) Proof(c *gin.Context) {
	var req dto.ProofRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, domainErrors.Invalid("body", "malformed JSON"))
		return
	}
	order, err := h.facade.ConfirmProof(c.Request.Context(), c.Param("id"), req.TransactionDigest)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// Payout handles POST /api/orders/:id/payout. A payout still in flight
// answers 202; a definite partner rejection answers 502 with the failed order.
func (h *OrderHandler) Payout(c *gin.Context) {
	order, err := h.facade.TriggerPayout(c.Request.Context(), c.Param("id"))
	if err != nil {
		if order != nil && domainErrors.IsRejected(err) {
			status, body := errorResponse(err)
			view := toOrderResponse(order)
			body.Order = &view
			c.JSON(status, body)
			return
		}
		writeError(c, err)
		return
	}
	if order.Status == model.OrderStatusSubmittingPayout {
		c.JSON(http.StatusAccepted, toOrderResponse(order))
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// Sync handles POST /api/orders/:id/sync.
func (h *OrderHandler) Sync(c *gin.Context) {
	order, err := h.facade.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// History handles GET /api/orders/:id/history.
func (h *OrderHandler) History(c *gin.Context) {
	events, err := h.facade.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	resp := make([]dto.OrderEventResponse, 0, len(events))
	for _, e := range events {
		resp = append(resp, dto.OrderEventResponse{Status: string(e.Status), Note: e.Note, CreatedAt: e.CreatedAt})
	}
	c.JSON(http.StatusOK, resp)
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	expected, _ := amount.FromRaw(order.ExpectedAmount, order.Asset.Decimals)
	return dto.OrderResponse{
		OrderID:        order.ID,
		Status:         string(order.Status),
		PayoutTargetID: order.PayoutTarget.ID,
		PayerAddress:   order.PayerAddress,
		ToAddress:      order.CollectionAddress,
		ExpectedAsset: dto.AssetResponse{
			Symbol:   order.Asset.Symbol,
			CoinType: order.Asset.CoinType,
			Decimals: order.Asset.Decimals,
		},
		ExpectedAmountRaw: order.ExpectedAmount,
		ExpectedAmount:    expected,
		FiatAmount:        order.FiatAmount.String(),
		FiatCurrency:      order.FiatCurrency,
		Quote: dto.QuoteResponse{
			TokenAmount: order.Quote.TokenAmount.String(),
			FiatAmount:  order.Quote.FiatAmount.String(),
			Rate:        order.Quote.Rate.String(),
			Fee:         order.Quote.Fee.String(),
		},
		TransactionDigest: order.TransactionRef,
		VerifiedAmountRaw: order.VerifiedAmount,
		VerifiedAt:        order.VerifiedAt,
		PartnerReference:  order.PartnerReference,
		PartnerStatus:     order.PartnerStatus,
		FailureReason:     order.FailureReason,
		SubmitAttempts:    order.SubmitAttempts,
		LastCheckedAt:     order.LastCheckedAt,
		CreatedAt:         order.CreatedAt,
		UpdatedAt:         order.UpdatedAt,
	}
}
