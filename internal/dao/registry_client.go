package dao

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"propspace/space-portal/space-portal-backend/internal/registry"
)

// RegistryClient is the DAO's view of the unit registry across the service
// boundary. Domain rejections come back as *registry.NftError; a call that did
// not complete comes back as *CallError. The two are never conflated.
type RegistryClient interface {
	CreateSpace(ctx context.Context, pricePerUnit, totalUnits uint64) (uint64, error)
	Mint(ctx context.Context, params registry.MintParams) (uint64, error)
	Trade(ctx context.Context, tokenID uint64, sender, receiver registry.AccountID, units uint64) error
	GetToken(ctx context.Context, tokenID uint64) (registry.Token, error)
}

// CallError is a transport-level failure: the remote operation may or may not
// have executed, and the caller must not assume either.
type CallError struct {
	Op  string
	Err error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("registry call %s did not complete: %v", e.Op, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// HTTPRegistryClient talks to the registry API with a custodian bearer token.
type HTTPRegistryClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPRegistryClient creates a registry client.
func NewHTTPRegistryClient(baseURL, token string, timeout time.Duration) *HTTPRegistryClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &HTTPRegistryClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPRegistryClient) CreateSpace(ctx context.Context, pricePerUnit, totalUnits uint64) (uint64, error) {
	var out struct {
		SpaceID uint64 `json:"space_id"`
	}
	err := c.post(ctx, "createSpace", "/registry/spaces", map[string]any{
		"price_per_unit": pricePerUnit,
		"total_units":    totalUnits,
	}, &out)
	if err != nil {
		return 0, err
	}
	return out.SpaceID, nil
}

func (c *HTTPRegistryClient) Mint(ctx context.Context, params registry.MintParams) (uint64, error) {
	var out struct {
		TokenID uint64 `json:"token_id"`
	}
	if err := c.post(ctx, "mint", "/registry/tokens/mint", params, &out); err != nil {
		return 0, err
	}
	return out.TokenID, nil
}

func (c *HTTPRegistryClient) Trade(ctx context.Context, tokenID uint64, sender, receiver registry.AccountID, units uint64) error {
	path := fmt.Sprintf("/registry/tokens/%d/trade", tokenID)
	return c.post(ctx, "trade", path, map[string]any{
		"sender":   sender,
		"receiver": receiver,
		"units":    units,
	}, nil)
}

func (c *HTTPRegistryClient) GetToken(ctx context.Context, tokenID uint64) (registry.Token, error) {
	var tok registry.Token
	path := fmt.Sprintf("/registry/tokens/%d", tokenID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return tok, &CallError{Op: "getToken", Err: err}
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return tok, &CallError{Op: "getToken", Err: err}
	}
	defer resp.Body.Close()
	if err := c.decode("getToken", resp, &tok); err != nil {
		return registry.Token{}, err
	}
	return tok, nil
}

// post issues one request and decodes the outcome.
func (c *HTTPRegistryClient) post(ctx context.Context, op, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &CallError{Op: op, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return &CallError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.client.Do(req)
	if err != nil {
		return &CallError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	return c.decode(op, resp, out)
}

// decode interprets one response. A payload carrying a taxonomy code is a
// completed-but-rejected operation; anything else that goes wrong is a
// CallError.
func (c *HTTPRegistryClient) decode(op string, resp *http.Response, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &CallError{Op: op, Err: err}
		}
		return nil
	}
	if resp.StatusCode >= 500 {
		return &CallError{Op: op, Err: fmt.Errorf("registry returned status %d", resp.StatusCode)}
	}

	var failure struct {
		Error registry.NftError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&failure); err != nil || failure.Error.Code == "" {
		return &CallError{Op: op, Err: fmt.Errorf("undecodable rejection, status %d", resp.StatusCode)}
	}
	return &failure.Error
}
