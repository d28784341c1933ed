package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/flicky/storefront-api/internal/dto"
	"github.com/flicky/storefront-api/internal/model"
	"github.com/flicky/storefront-api/internal/service"
)

type OrderService interface {
	CreateOrder(ctx context.Context, who model.Identity, in service.CreateOrderInput) (*model.Order, error)
	ListOrders(ctx context.Context, who model.Identity) ([]model.Order, error)
	GetOrder(ctx context.Context, who model.Identity, orderID int64) (*model.Order, error)
	CancelOrder(ctx context.Context, who model.Identity, orderID int64) (*model.Order, error)
	AdvanceStatus(ctx context.Context, orderID int64, next model.OrderStatus) (*model.Order, error)
}

type OrderHandler struct {
	orderService OrderService
}

func NewOrderHandler(orderService OrderService) *OrderHandler {
	return &OrderHandler{orderService: orderService}
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	lines := make([]model.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, model.CartLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), who, service.CreateOrderInput{
		Address:    req.Address,
		PostalCode: req.PostalCode,
		City:       req.City,
		StripeID:   req.StripeID,
		Items:      lines,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}

	orders, err := h.orderService.ListOrders(c.Request.Context(), who)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]dto.OrderResponse, 0, len(orders))
	for i := range orders {
		resp = append(resp, toOrderResponse(&orders[i]))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.GetOrder(c.Request.Context(), who, orderID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

func (h *OrderHandler) CancelOrder(c *gin.Context) {
	who, ok := identity(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	if _, err := h.orderService.CancelOrder(c.Request.Context(), who, orderID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": "Order has been cancelled."})
}

func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBindError(c, err)
		return
	}

	order, err := h.orderService.AdvanceStatus(c.Request.Context(), orderID, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(order *model.Order) dto.OrderResponse {
	items := make([]dto.OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, dto.OrderItemResponse{
			Price:    item.Price,
			Quantity: item.Quantity,
			Product: dto.OrderProductResponse{
				ID:    item.ProductID,
				Name:  item.ProductName,
				Image: item.ProductImage,
			},
		})
	}
	return dto.OrderResponse{
		ID:         order.ID,
		Status:     order.Status,
		Paid:       order.Paid,
		StripeID:   order.StripeID,
		Address:    order.Address,
		PostalCode: order.PostalCode,
		City:       order.City,
		Total:      order.Total(),
		Items:      items,
		Created:    order.CreatedAt,
	}
}
