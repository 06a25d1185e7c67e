package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/gateway"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

// OrderReader is the read side of the order store.
type OrderReader interface {
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListNotes(ctx context.Context, id string) ([]models.OrderNote, error)
}

type OrderPaymentHandler struct {
	orders  OrderReader
	gateway gateway.PaymentGateway
	logger  *zap.Logger
}

func NewOrderPaymentHandler(orders OrderReader, g gateway.PaymentGateway, logger *zap.Logger) *OrderPaymentHandler {
	return &OrderPaymentHandler{orders: orders, gateway: g, logger: logger}
}

func (h *OrderPaymentHandler) GetPayment(c *gin.Context) {
	orderID := c.Param("id")

	order, err := h.orders.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Error("Failed to fetch order", zap.String("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	notes, err := h.orders.ListNotes(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Error("Failed to fetch order notes", zap.String("order_id", orderID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}

	history := make([]gin.H, 0, len(notes))
	for _, n := range notes {
		history = append(history, gin.H{"note": n.Note, "created_at": n.CreatedAt})
	}

	c.JSON(http.StatusOK, gin.H{
		"order_id":          order.ID,
		"status":            order.Status,
		"paid":              order.IsPaid(),
		"paid_at":           order.PaidAt,
		"payment_reference": order.PaymentReference,
		"transaction_id":    order.TransactionID,
		"transaction_url":   h.gateway.TransactionURL(order.TransactionID),
		"notes":             history,
		"updated_at":        order.UpdatedAt,
	})
}
