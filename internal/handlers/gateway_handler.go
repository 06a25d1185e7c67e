package handlers

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/gateway"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
	"github.com/akylbek/payment-system/hutko-gateway/internal/service"
)

const maxCallbackBody = 1 << 20

type GatewayHandler struct {
	registry *gateway.Registry
	logger   *zap.Logger
}

func NewGatewayHandler(registry *gateway.Registry, logger *zap.Logger) *GatewayHandler {
	return &GatewayHandler{registry: registry, logger: logger}
}

func (h *GatewayHandler) lookup(c *gin.Context) (gateway.PaymentGateway, bool) {
	g, ok := h.registry.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "gateway not found"})
	}
	return g, ok
}

// Callback receives processor notifications. Success is an empty 200, any
// failure a 400 with a generic message.
func (h *GatewayHandler) Callback(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxCallbackBody))
	if err != nil {
		h.logger.Warn("Error reading callback body", zap.Error(err))
		body = nil
	}

	req := callback.Request{
		Method:     c.Request.Method,
		URI:        c.Request.RequestURI,
		RemoteAddr: c.ClientIP(),
		Body:       body,
		Query:      c.Request.URL.Query(),
	}
	req.Form = h.parseForm(c.GetHeader("Content-Type"), body)

	outcome := g.HandleCallback(c.Request.Context(), req)
	if !outcome.OK() {
		c.JSON(http.StatusBadRequest, gin.H{"error": outcome.Message()})
		return
	}
	c.Status(http.StatusOK)
}

// parseForm decodes urlencoded and multipart bodies. File parts are ignored.
func (h *GatewayHandler) parseForm(contentType string, body []byte) url.Values {
	mt, params, err := mime.ParseMediaType(contentType)
	if err != nil || len(body) == 0 {
		return nil
	}

	switch mt {
	case "application/x-www-form-urlencoded":
		form, err := url.ParseQuery(string(body))
		if err != nil {
			return nil
		}
		return form
	case "multipart/form-data":
		mf, err := multipart.NewReader(bytes.NewReader(body), params["boundary"]).ReadForm(maxCallbackBody)
		if err != nil {
			h.logger.Warn("Error parsing multipart callback", zap.Error(err))
			return nil
		}
		defer mf.RemoveAll()
		return url.Values(mf.Value)
	}
	return nil
}

type checkoutRequest struct {
	OrderID string `json:"order_id" binding:"required"`
}

func (h *GatewayHandler) Checkout(c *gin.Context) {
	g, ok := h.lookup(c)
	if !ok {
		return
	}

	var body checkoutRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	res, err := g.ProcessPayment(c.Request.Context(), models.CheckoutRequest{
		OrderID: body.OrderID,
		Referer: c.GetHeader("Referer"),
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, res)
	case errors.Is(err, service.ErrOrderNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
	case errors.Is(err, service.ErrOrderPaid):
		c.JSON(http.StatusConflict, gin.H{"error": "order already paid"})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to start payment"})
	}
}

func (h *GatewayHandler) List(c *gin.Context) {
	out := make([]gin.H, 0)
	for _, g := range h.registry.All() {
		out = append(out, gin.H{
			"id":                g.ID(),
			"title":             g.Title(),
			"integration_type":  g.Integration(),
			"integration_types": g.IntegrationTypes(),
			"callback_path":     g.CallbackPath(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"gateways": out})
}

// Statuses lists the order statuses a status override may name.
func (h *GatewayHandler) Statuses(c *gin.Context) {
	if _, ok := h.lookup(c); !ok {
		return
	}
	statuses := []string{models.DefaultStatus}
	for _, s := range models.OrderStatuses {
		statuses = append(statuses, string(s))
	}
	c.JSON(http.StatusOK, gin.H{"statuses": statuses})
}
