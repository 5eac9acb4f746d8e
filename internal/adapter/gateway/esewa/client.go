package esewa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"school-fee-gateway/config"
	"school-fee-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client queries the eSewa transaction status endpoint. It implements
// ports.GatewayClient.
type Client struct {
	statusURL  string
	timeout    time.Duration
	httpClient HTTPClient
	log        zerolog.Logger
}

// NewClient creates an eSewa status client for the configured environment.
func NewClient(cfg config.EsewaConfig, httpClient HTTPClient, log zerolog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.StatusTimeout}
	}
	return &Client{
		statusURL:  cfg.StatusURL(),
		timeout:    cfg.StatusTimeout,
		httpClient: httpClient,
		log:        log,
	}
}

// statusResponse is eSewa's status payload. Amounts come back as JSON numbers
// with a fractional part, so they are parsed as float and truncated to whole
// rupees.
type statusResponse struct {
	ProductCode     string  `json:"product_code"`
	TransactionUUID string  `json:"transaction_uuid"`
	TotalAmount     float64 `json:"total_amount"`
	Status          string  `json:"status"`
	RefID           string  `json:"ref_id"`
}

// LookupStatus asks eSewa for the state of a transaction. A non-nil error
// means the status is unknown; it never means the payment failed.
func (c *Client) LookupStatus(ctx context.Context, productCode string, totalAmount int64, transactionUUID string) (*ports.GatewayStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := url.Values{}
	query.Set("product_code", productCode)
	query.Set("total_amount", strconv.FormatInt(totalAmount, 10))
	query.Set("transaction_uuid", transactionUUID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.statusURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("esewa status request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.log.Warn().
			Int("status_code", resp.StatusCode).
			Str("transaction_uuid", transactionUUID).
			Msg("esewa status endpoint returned non-200")
		return nil, fmt.Errorf("esewa status endpoint returned %d", resp.StatusCode)
	}

	var parsed statusResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	if parsed.Status == "" {
		return nil, fmt.Errorf("esewa status response missing status field")
	}

	c.log.Debug().
		Str("transaction_uuid", transactionUUID).
		Str("gateway_status", parsed.Status).
		Str("ref_id", parsed.RefID).
		Msg("esewa status lookup")

	return &ports.GatewayStatus{
		Status:          parsed.Status,
		TransactionUUID: parsed.TransactionUUID,
		ReferenceID:     parsed.RefID,
		TotalAmount:     int64(parsed.TotalAmount),
		Raw:             json.RawMessage(body),
	}, nil
}
