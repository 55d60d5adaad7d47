// Package paypal wraps the PayPal Orders v2 API (github.com/plutov/paypal)
// behind the two calls the billing service needs: order creation and capture.
package paypal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	sdk "github.com/plutov/paypal/v4"
)

// ErrNotConfigured is returned when client credentials are missing.
var ErrNotConfigured = errors.New("paypal: client credentials not configured")

// Link is a HATEOAS link returned with an order.
type Link struct {
	Href   string `json:"href"`
	Rel    string `json:"rel"`
	Method string `json:"method"`
}

// Order is the provider's view of an order.
type Order struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  []Link `json:"links"`
}

// ApprovalURL returns the link the payer must visit to approve the order, or
// "" if the provider returned none.
func (o Order) ApprovalURL() string {
	for _, l := range o.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			return l.Href
		}
	}
	return ""
}

// Config holds credentials and redirect targets.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	ReturnURL    string
	CancelURL    string
	BrandName    string
	Timeout      time.Duration
}

// Client calls the Orders API. The SDK caches the access token and renews it
// before expiry; a 401 on a cached token triggers one refresh and retry.
type Client struct {
	cfg Config
	api *sdk.Client

	refreshMu sync.Mutex
}

// NewClient creates a client. Missing credentials yield a client whose calls
// return ErrNotConfigured. A zero timeout falls back to 30s.
func NewClient(cfg Config) (*Client, error) {
	c := &Client{cfg: cfg}
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return c, nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = sdk.APIBaseSandBox
	}

	api, err := sdk.NewClient(cfg.ClientID, cfg.ClientSecret, base)
	if err != nil {
		return nil, fmt.Errorf("paypal client: %w", err)
	}
	api.SetHTTPClient(&http.Client{Timeout: cfg.Timeout})
	c.cfg = cfg
	c.api = api
	return c, nil
}

// CreateOrder creates a CAPTURE-intent order for value in currency.
// reference is echoed as the purchase unit reference and used as the
// PayPal-Request-Id so provider-side retries are idempotent.
func (c *Client) CreateOrder(ctx context.Context, value, currency, reference string) (Order, error) {
	if c.api == nil {
		return Order{}, ErrNotConfigured
	}

	units := []sdk.PurchaseUnitRequest{{
		ReferenceID: reference,
		Amount:      &sdk.PurchaseUnitAmount{Currency: currency, Value: value},
	}}
	appCtx := &sdk.ApplicationContext{
		BrandName:  c.cfg.BrandName,
		UserAction: "PAY_NOW",
		ReturnURL:  c.cfg.ReturnURL,
		CancelURL:  c.cfg.CancelURL,
	}

	var out *sdk.Order
	err := c.withAuthRetry(ctx, func() error {
		var err error
		out, err = c.api.CreateOrderWithPaypalRequestID(ctx, sdk.OrderIntentCapture, units, nil, appCtx, reference)
		return err
	})
	if err != nil {
		return Order{}, fmt.Errorf("create order: %w", err)
	}
	if out == nil || out.ID == "" {
		return Order{}, errors.New("create order: provider returned no id")
	}

	o := Order{ID: out.ID, Status: out.Status}
	for _, l := range out.Links {
		o.Links = append(o.Links, Link{Href: l.Href, Rel: l.Rel, Method: l.Method})
	}
	return o, nil
}

// CaptureOrder captures an approved order.
func (c *Client) CaptureOrder(ctx context.Context, orderID string) (Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return Order{}, errors.New("capture order: empty order id")
	}
	if c.api == nil {
		return Order{}, ErrNotConfigured
	}

	var out *sdk.CaptureOrderResponse
	err := c.withAuthRetry(ctx, func() error {
		var err error
		out, err = c.api.CaptureOrder(ctx, orderID, sdk.CaptureOrderRequest{})
		return err
	})
	if err != nil {
		return Order{}, fmt.Errorf("capture order: %w", err)
	}
	if out == nil {
		return Order{}, errors.New("capture order: empty provider response")
	}
	return Order{ID: out.ID, Status: out.Status}, nil
}

// withAuthRetry runs call and, if the provider rejects the cached token,
// fetches a fresh one and runs call once more.
func (c *Client) withAuthRetry(ctx context.Context, call func() error) error {
	err := call()
	if !isUnauthorized(err) {
		return err
	}

	c.refreshMu.Lock()
	_, tokErr := c.api.GetAccessToken(ctx)
	c.refreshMu.Unlock()
	if tokErr != nil {
		return fmt.Errorf("refresh token: %w", tokErr)
	}
	return call()
}

func isUnauthorized(err error) bool {
	var er *sdk.ErrorResponse
	return errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusUnauthorized
}
