package upcitemdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the hosted UPCitemdb API.
const DefaultBaseURL = "https://api.upcitemdb.com"

var (
	// ErrNotFound is returned when no item matches the code.
	ErrNotFound = errors.New("upcitemdb: item not found")
	// ErrRateLimited is returned when the plan quota is exhausted.
	ErrRateLimited = errors.New("upcitemdb: rate limited")
)

// Client is a thin UPCitemdb API client. Without a key it uses the trial
// endpoint.
type Client struct {
	http *resty.Client
	key  string
}

// NewClient constructs a Client.
func NewClient(baseURL, key string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	hc := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(1).
		SetRetryWaitTime(500 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		}).
		SetHeader("Accept", "application/json")
	if key != "" {
		hc.SetHeader("user_key", key).SetHeader("key_type", "3scale")
	}
	return &Client{http: hc, key: key}
}

func (c *Client) lookupPath() string {
	if c.key == "" {
		return "/prod/trial/lookup"
	}
	return "/prod/v1/lookup"
}

// Lookup returns the first item matching a UPC/EAN code.
func (c *Client) Lookup(ctx context.Context, code string) (*Item, error) {
	var out LookupResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("upc", code).
		SetResult(&out).
		SetError(&out).
		Get(c.lookupPath())
	if err != nil {
		return nil, fmt.Errorf("upcitemdb request failed: %w", err)
	}

	log.Debug().
		Str("barcode", code).
		Int("status_code", resp.StatusCode()).
		Dur("latency", resp.Time()).
		Msg("[UPCITEMDB] lookup")

	switch {
	case resp.StatusCode() == http.StatusTooManyRequests:
		return nil, ErrRateLimited
	case resp.StatusCode() == http.StatusNotFound, out.Code == "INVALID_UPC":
		return nil, ErrNotFound
	case resp.IsError():
		return nil, fmt.Errorf("upcitemdb returned status %d: %s", resp.StatusCode(), out.Message)
	}
	if out.Total == 0 || len(out.Items) == 0 {
		return nil, ErrNotFound
	}
	return &out.Items[0], nil
}
