// Package hutkoapi is the outbound client for the processor's checkout API.
package hutkoapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
	"github.com/akylbek/payment-system/hutko-gateway/internal/signature"
)

const (
	DefaultBaseURL = "https://pay.hutko.org/api"

	checkoutURLPath   = "/checkout/url/"
	checkoutTokenPath = "/checkout/token/"

	statusSuccess = "success"
)

var (
	ErrRequestFailed   = errors.New("hutko request failed")
	ErrResponseInvalid = errors.New("hutko response invalid")
)

// APIError is a failure reported by the processor itself.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hutko error %s: %s", e.Code, e.Message)
}

type envelope struct {
	Response response `json:"response"`
}

type response struct {
	ResponseStatus string      `json:"response_status"`
	CheckoutURL    string      `json:"checkout_url"`
	Token          string      `json:"token"`
	ErrorMessage   string      `json:"error_message"`
	ErrorCode      interface{} `json:"error_code"`
}

type Client struct {
	http       *resty.Client
	merchantID string
	secretKey  string
}

type Options struct {
	BaseURL    string
	MerchantID string
	SecretKey  string
	Timeout    time.Duration
	Retries    int
}

func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetRetryCount(opts.Retries).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{
		http:       httpClient,
		merchantID: opts.MerchantID,
		secretKey:  opts.SecretKey,
	}
}

// CheckoutURL creates a hosted checkout session and returns its redirect URL.
func (c *Client) CheckoutURL(ctx context.Context, params models.PaymentParams) (string, error) {
	resp, err := c.post(ctx, checkoutURLPath, params)
	if err != nil {
		return "", err
	}
	if resp.CheckoutURL == "" {
		return "", fmt.Errorf("%w: missing checkout_url", ErrResponseInvalid)
	}
	return resp.CheckoutURL, nil
}

// CheckoutToken creates an embedded checkout session and returns its token.
func (c *Client) CheckoutToken(ctx context.Context, params models.PaymentParams) (string, error) {
	resp, err := c.post(ctx, checkoutTokenPath, params)
	if err != nil {
		return "", err
	}
	if resp.Token == "" {
		return "", fmt.Errorf("%w: missing token", ErrResponseInvalid)
	}
	return resp.Token, nil
}

func (c *Client) post(ctx context.Context, path string, params models.PaymentParams) (*response, error) {
	fields := params.Fields()
	fields["merchant_id"] = c.merchantID
	fields["signature"] = signature.Sign(c.secretKey, fields)

	var out envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{"request": fields}).
		SetResult(&out).
		Post(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: http status %d", ErrRequestFailed, resp.StatusCode())
	}

	if out.Response.ResponseStatus != statusSuccess {
		code := ""
		if out.Response.ErrorCode != nil {
			code = fmt.Sprint(out.Response.ErrorCode)
		}
		if out.Response.ResponseStatus == "" && code == "" {
			return nil, fmt.Errorf("%w: empty response", ErrResponseInvalid)
		}
		return nil, &APIError{Code: code, Message: out.Response.ErrorMessage}
	}
	return &out.Response, nil
}
