// File: internal/infra/adapters/payment/razorpay_gateway.go
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*RazorpayGateway)(nil)

// RazorpayGateway opens orders through the Orders REST API using Basic auth.
// It holds no credentials; each call supplies the account it acts for.
type RazorpayGateway struct {
	baseURL string
	client  *http.Client
}

func NewRazorpayGateway(baseURL string, timeout time.Duration) (*RazorpayGateway, error) {
	if baseURL == "" {
		return nil, errors.New("gateway base url empty")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &RazorpayGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

type orderCreateBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponse struct {
	ID       string `json:"id"`
	Entity   string `json:"entity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder calls POST /orders. Any transport or provider failure is
// reported as domain.ErrGatewayUnavailable.
func (g *RazorpayGateway) CreateOrder(ctx context.Context, creds model.GatewayCredentials, req adapter.CreateOrderRequest) (*adapter.GatewayOrder, error) {
	if !creds.Complete() {
		return nil, domain.ErrCredentialsNotConfigured
	}
	if req.AmountMinor <= 0 || req.Currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	b, err := json.Marshal(orderCreateBody{
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Notes:    req.Notes,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/orders", bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.SetBasicAuth(creds.KeyID, creds.KeySecret)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrGatewayUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var er errorResponse
		_ = json.Unmarshal(body, &er)
		if er.Error.Description != "" {
			return nil, fmt.Errorf("%w: status %d: %s: %s", domain.ErrGatewayUnavailable, resp.StatusCode, er.Error.Code, er.Error.Description)
		}
		return nil, fmt.Errorf("%w: status %d", domain.ErrGatewayUnavailable, resp.StatusCode)
	}

	var out orderResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode order: %v", domain.ErrGatewayUnavailable, err)
	}
	if out.ID == "" {
		return nil, fmt.Errorf("%w: empty order id", domain.ErrGatewayUnavailable)
	}
	return &adapter.GatewayOrder{
		ID:       out.ID,
		Amount:   out.Amount,
		Currency: out.Currency,
		Receipt:  out.Receipt,
		Status:   out.Status,
	}, nil
}
