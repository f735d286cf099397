package openfoodfacts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public Open Food Facts instance.
const DefaultBaseURL = "https://world.openfoodfacts.org"

// ErrNotFound is returned when the barcode is unknown to the database.
var ErrNotFound = errors.New("openfoodfacts: product not found")

// Client is a thin Open Food Facts API client.
type Client struct {
	http *resty.Client
}

// NewClient constructs a Client. An empty baseURL selects DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(300 * time.Millisecond).
			SetRetryMaxWaitTime(2 * time.Second).
			AddRetryCondition(func(r *resty.Response, err error) bool {
				return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
			}).
			SetHeader("Accept", "application/json").
			SetHeader("User-Agent", "scanapi/1.0 (inventory scanning)"),
	}
}

// GetProduct fetches a product by barcode.
func (c *Client) GetProduct(ctx context.Context, barcode string) (*Product, error) {
	var out ProductResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("code", barcode).
		SetResult(&out).
		Get("/api/v2/product/{code}.json")
	if err != nil {
		return nil, fmt.Errorf("openfoodfacts request failed: %w", err)
	}

	log.Debug().
		Str("barcode", barcode).
		Int("status_code", resp.StatusCode()).
		Dur("latency", resp.Time()).
		Msg("[OFF] product lookup")

	if resp.StatusCode() == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.IsError() {
		return nil, fmt.Errorf("openfoodfacts returned status %d", resp.StatusCode())
	}
	if out.Status != 1 || out.Product == nil {
		return nil, ErrNotFound
	}
	if out.Product.Code == "" {
		out.Product.Code = out.Code
	}
	return out.Product, nil
}
