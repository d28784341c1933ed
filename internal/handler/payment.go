package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
)

type PaymentService interface {
	CreatePaymentIntent(ctx context.Context, who model.Identity, lines []model.CartLine) (*model.PaymentIntent, error)
}

type PaymentHandler struct {
	paymentService PaymentService
}

func NewPaymentHandler(paymentService PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// CreateIntent returns the client secret the storefront confirms the payment
// with. The amount is computed from catalog prices.
func (h *PaymentHandler) CreateIntent(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	var req dto.PaymentIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	lines := make([]model.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, model.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	intent, err := h.paymentService.CreatePaymentIntent(c.Request.Context(), who, lines)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PaymentIntentResponse{
		ClientSecret: intent.ClientSecret,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
	})
}
