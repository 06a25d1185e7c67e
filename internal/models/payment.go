package models

import "strconv"

type IntegrationType string

const (
	IntegrationEmbedded IntegrationType = "embedded"
	IntegrationHosted   IntegrationType = "hosted"
)

// PaymentParams is the checkout request sent to the processor.
type PaymentParams struct {
	OrderID           string `json:"order_id"`
	OrderDesc         string `json:"order_desc"`
	Amount            int64  `json:"amount"`
	Currency          string `json:"currency"`
	Language          string `json:"lang"`
	SenderEmail       string `json:"sender_email"`
	ResponseURL       string `json:"response_url"`
	ServerCallbackURL string `json:"server_callback_url"`
	ReservationData   string `json:"reservation_data"`
}

// Fields flattens the params into the string map the signature is computed over.
func (p PaymentParams) Fields() map[string]string {
	return map[string]string{
		"order_id":            p.OrderID,
		"order_desc":          p.OrderDesc,
		"amount":              strconv.FormatInt(p.Amount, 10),
		"currency":            p.Currency,
		"lang":                p.Language,
		"sender_email":        p.SenderEmail,
		"response_url":        p.ResponseURL,
		"server_callback_url": p.ServerCallbackURL,
		"reservation_data":    p.ReservationData,
	}
}

type ReservationProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Price       string `json:"price"`
	TotalAmount string `json:"total_amount"`
	Quantity    int    `json:"quantity"`
}

// ReservationData is the anti-fraud context attached to a checkout request.
type ReservationData struct {
	CustomerZip      string               `json:"customer_zip"`
	CustomerName     string               `json:"customer_name"`
	CustomerAddress  string               `json:"customer_address"`
	CustomerState    string               `json:"customer_state"`
	CustomerCountry  string               `json:"customer_country"`
	PhoneMobile      string               `json:"phonemobile"`
	Account          string               `json:"account"`
	CMSName          string               `json:"cms_name"`
	CMSVersion       string               `json:"cms_version"`
	CMSPluginVersion string               `json:"cms_plugin_version"`
	ShopDomain       string               `json:"shop_domain"`
	Path             string               `json:"path"`
	Products         []ReservationProduct `json:"products"`
}

// CheckoutResult is what a gateway hands back to the storefront after initiation.
type CheckoutResult struct {
	OrderID     string          `json:"order_id"`
	Reference   string          `json:"payment_reference,omitempty"`
	Integration IntegrationType `json:"integration_type"`
	RedirectURL string          `json:"redirect_url,omitempty"`
	Token       string          `json:"token,omitempty"`
}

// CheckoutRequest starts a payment for an existing order.
type CheckoutRequest struct {
	OrderID string `json:"order_id"`
	Referer string `json:"-"`
}
