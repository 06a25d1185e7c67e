package gateway

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
)

const (
	cmsName = "hutko-gateway"

	returnPathFormat = "/checkout/order-received/%s"
	payPathFormat    = "/checkout/order-pay/%s"
)

// ParamsBuilderConfig carries the storefront settings checkout requests need.
type ParamsBuilderConfig struct {
	SiteURL       string
	RedirectURL   string
	CallbackPath  string
	Locale        string
	Version       string
	PluginVersion string
}

// ParamsBuilder turns an order into the processor's checkout request.
type ParamsBuilder struct {
	cfg ParamsBuilderConfig
}

func NewParamsBuilder(cfg ParamsBuilderConfig) *ParamsBuilder {
	cfg.SiteURL = strings.TrimRight(cfg.SiteURL, "/")
	return &ParamsBuilder{cfg: cfg}
}

// Build assembles the params for one checkout attempt identified by reference.
func (b *ParamsBuilder) Build(order *models.Order, reference, referer string) (models.PaymentParams, error) {
	reservation, err := b.ReservationData(order, referer)
	if err != nil {
		return models.PaymentParams{}, err
	}

	return models.PaymentParams{
		OrderID:           reference,
		OrderDesc:         "Order №: " + order.ID,
		Amount:            AmountMinor(order.Total),
		Currency:          order.Currency,
		Language:          b.Language(),
		SenderEmail:       order.Customer.Email,
		ResponseURL:       b.ResponseURL(order),
		ServerCallbackURL: b.CallbackURL(),
		ReservationData:   reservation,
	}, nil
}

// AmountMinor converts a major-unit total to minor units, rounding half away from zero.
func AmountMinor(total decimal.Decimal) int64 {
	return total.Shift(2).Round(0).IntPart()
}

// Language is the two-letter language code of the configured locale.
func (b *ParamsBuilder) Language() string {
	lang := strings.TrimSpace(b.cfg.Locale)
	if len(lang) > 2 {
		lang = lang[:2]
	}
	return strings.ToLower(lang)
}

func (b *ParamsBuilder) ResponseURL(order *models.Order) string {
	if b.cfg.RedirectURL != "" {
		return b.cfg.RedirectURL
	}
	return b.cfg.SiteURL + fmt.Sprintf(returnPathFormat, order.ID)
}

func (b *ParamsBuilder) PayURL(order *models.Order) string {
	return b.cfg.SiteURL + fmt.Sprintf(payPathFormat, order.ID)
}

func (b *ParamsBuilder) CallbackURL() string {
	return b.cfg.SiteURL + b.cfg.CallbackPath
}

// ReservationData encodes the anti-fraud context as base64 JSON.
func (b *ParamsBuilder) ReservationData(order *models.Order, referer string) (string, error) {
	c := order.Customer
	data := models.ReservationData{
		CustomerZip:      c.Postcode,
		CustomerName:     strings.TrimSpace(c.FirstName + " " + c.LastName),
		CustomerAddress:  strings.TrimSpace(c.Address + " " + c.City),
		CustomerState:    c.State,
		CustomerCountry:  c.Country,
		PhoneMobile:      c.Phone,
		Account:          c.Email,
		CMSName:          cmsName,
		CMSVersion:       b.cfg.Version,
		CMSPluginVersion: b.cfg.PluginVersion,
		ShopDomain:       b.cfg.SiteURL,
		Path:             referer,
		Products:         make([]models.ReservationProduct, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		data.Products = append(data.Products, models.ReservationProduct{
			ID:          item.ProductID,
			Name:        item.Name,
			Price:       item.Price.String(),
			TotalAmount: item.Total.String(),
			Quantity:    item.Quantity,
		})
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal reservation data: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}
