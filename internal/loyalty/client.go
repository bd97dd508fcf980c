package loyalty

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Service is the set of business operations the console issues. Every
// operation takes the active credential explicitly.
type Service interface {
	ListCustomers(ctx context.Context, query, credential string) ([]Customer, error)
	AddOrUpdate(ctx context.Context, input CustomerInput, credential string) (Customer, error)
	ApplySpend(ctx context.Context, id string, amount float64, credential string) (Customer, error)
	ResetReward(ctx context.Context, id, credential string) (Customer, error)
}

// Ensure Client implements Service at compile time.
var _ Service = (*Client)(nil)

// Actions understood by the remote script service.
const (
	ActionList        = "list"
	ActionAddOrUpdate = "add_or_update"
	ActionApplySpend  = "apply_spend"
	ActionResetReward = "reset_reward"
)

const (
	// AuthHeader carries the credential to the proxy.
	AuthHeader = "X-Auth"

	defaultEndpoint  = "http://127.0.0.1:7490/proxy"
	defaultUserAgent = "perkdesk/0.1"
)

// Client talks to the perkdesk proxy endpoint.
type Client struct {
	endpoint  *url.URL
	http      *http.Client
	userAgent string
}

// NewClient builds a Client for the given proxy endpoint URL. A missing scheme
// defaults to http and an empty endpoint to the local proxy.
func NewClient(endpoint string) (*Client, error) {
	u, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	return &Client{
		endpoint:  u,
		http:      &http.Client{},
		userAgent: defaultUserAgent,
	}, nil
}

// Endpoint returns the proxy URL the client sends requests to.
func (c *Client) Endpoint() string {
	if c == nil {
		return ""
	}
	return c.endpoint.String()
}

// ListCustomers returns the customers matching query, in backend order. An
// empty query lists everyone.
func (c *Client) ListCustomers(ctx context.Context, query, credential string) ([]Customer, error) {
	if c == nil {
		return nil, fmt.Errorf("client is nil")
	}
	values := url.Values{}
	values.Set("query", query)
	payload, err := c.do(ctx, http.MethodGet, ActionList, values, nil, credential, "Failed to fetch customers")
	if err != nil {
		return nil, err
	}
	customers := []Customer{}
	if payload == nil {
		return customers, nil
	}
	if err := json.Unmarshal(payload, &customers); err != nil {
		return nil, fmt.Errorf("decode customers: %w", err)
	}
	if customers == nil {
		customers = []Customer{}
	}
	return customers, nil
}

// AddOrUpdate validates input and upserts the customer. Validation failures
// return a *ValidationError without touching the network.
func (c *Client) AddOrUpdate(ctx context.Context, input CustomerInput, credential string) (Customer, error) {
	if c == nil {
		return Customer{}, fmt.Errorf("client is nil")
	}
	body, err := normalizeInput(input)
	if err != nil {
		return Customer{}, err
	}
	return c.mutate(ctx, ActionAddOrUpdate, body, credential, "Failed to upsert customer")
}

// ApplySpend records a purchase amount against the customer's goal. The id
// must be non-empty and amount finite and positive.
func (c *Client) ApplySpend(ctx context.Context, id string, amount float64, credential string) (Customer, error) {
	if c == nil {
		return Customer{}, fmt.Errorf("client is nil")
	}
	id, err := validateID(id)
	if err != nil {
		return Customer{}, err
	}
	if err := validateAmount(amount); err != nil {
		return Customer{}, err
	}
	return c.mutate(ctx, ActionApplySpend, spendPayload{ID: id, Amount: amount}, credential, "Failed to apply spend")
}

// ResetReward resets the customer's reward progress.
func (c *Client) ResetReward(ctx context.Context, id, credential string) (Customer, error) {
	if c == nil {
		return Customer{}, fmt.Errorf("client is nil")
	}
	id, err := validateID(id)
	if err != nil {
		return Customer{}, err
	}
	return c.mutate(ctx, ActionResetReward, resetPayload{ID: id}, credential, "Failed to reset reward")
}

func (c *Client) mutate(ctx context.Context, action string, body any, credential, fallback string) (Customer, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return Customer{}, fmt.Errorf("encode request: %w", err)
	}
	payload, err := c.do(ctx, http.MethodPost, action, nil, encoded, credential, fallback)
	if err != nil {
		return Customer{}, err
	}
	if payload == nil {
		return Customer{}, ErrNoData
	}
	var customer Customer
	if err := json.Unmarshal(payload, &customer); err != nil {
		return Customer{}, fmt.Errorf("decode customer: %w", err)
	}
	return customer, nil
}

// do performs one request against the proxy. Transport failures are wrapped
// and never retried; everything else goes through decodeResponse.
func (c *Client) do(ctx context.Context, method, action string, values url.Values, body []byte, credential, fallback string) (json.RawMessage, error) {
	reqURL := *c.endpoint
	query := reqURL.Query()
	query.Set("action", action)
	for key, vals := range values {
		query[key] = vals
	}
	reqURL.RawQuery = query.Encode()

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(AuthHeader, credential)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	return decodeResponse(resp, fallback)
}

func parseEndpoint(endpoint string) (*url.URL, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		trimmed = defaultEndpoint
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("parse proxy url %q: %w", endpoint, errors.New("missing host"))
	}
	if u.Path == "" {
		u.Path = "/proxy"
	}
	u.Fragment = ""
	return u, nil
}
