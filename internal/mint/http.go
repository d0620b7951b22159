package mint

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/congo-pay/cashubench/internal/cashu"
)

const (
	pathKeysets   = "/v1/keysets"
	pathKeys      = "/v1/keys"
	pathMintQuote = "/v1/mint/quote/bolt11"
	pathMint      = "/v1/mint/bolt11"
	pathSwap      = "/v1/swap"
)

// HTTPClient talks to a mint over its REST API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient validates the endpoint and returns a client for it. A nil
// httpClient falls back to DefaultHTTPClient.
func NewHTTPClient(endpoint string, httpClient *http.Client) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimSpace(endpoint))
	if err != nil {
		return nil, fmt.Errorf("parse mint url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("mint url %q must use http or https", endpoint)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("mint url %q has no host", endpoint)
	}
	if httpClient == nil {
		httpClient = DefaultHTTPClient()
	}

	return &HTTPClient{
		baseURL:    strings.TrimRight(u.String(), "/"),
		httpClient: httpClient,
	}, nil
}

// DefaultHTTPClient keeps enough idle connections per host for every worker
// of a run to reuse its connection.
func DefaultHTTPClient() *http.Client {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.MaxIdleConns = 256
	tr.MaxIdleConnsPerHost = 256
	return &http.Client{
		Transport: tr,
		Timeout:   30 * time.Second,
	}
}

// URL returns the normalised mint endpoint.
func (c *HTTPClient) URL() string {
	return c.baseURL
}

func (c *HTTPClient) Keysets(ctx context.Context) (cashu.GetKeysetsResponse, error) {
	var resp cashu.GetKeysetsResponse
	err := c.do(ctx, http.MethodGet, pathKeysets, nil, &resp)
	return resp, err
}

func (c *HTTPClient) Keys(ctx context.Context, keysetID string) (cashu.GetKeysResponse, error) {
	var resp cashu.GetKeysResponse
	err := c.do(ctx, http.MethodGet, pathKeys+"/"+url.PathEscape(keysetID), nil, &resp)
	return resp, err
}

func (c *HTTPClient) CreateMintQuote(ctx context.Context, req cashu.PostMintQuoteRequest) (cashu.PostMintQuoteResponse, error) {
	var resp cashu.PostMintQuoteResponse
	err := c.do(ctx, http.MethodPost, pathMintQuote, req, &resp)
	return resp, err
}

func (c *HTTPClient) MintQuote(ctx context.Context, quoteID string) (cashu.PostMintQuoteResponse, error) {
	var resp cashu.PostMintQuoteResponse
	err := c.do(ctx, http.MethodGet, pathMintQuote+"/"+url.PathEscape(quoteID), nil, &resp)
	return resp, err
}

func (c *HTTPClient) Mint(ctx context.Context, req cashu.PostMintRequest) (cashu.PostMintResponse, error) {
	var resp cashu.PostMintResponse
	err := c.do(ctx, http.MethodPost, pathMint, req, &resp)
	return resp, err
}

func (c *HTTPClient) Swap(ctx context.Context, req cashu.PostSwapRequest) (cashu.PostSwapResponse, error) {
	var resp cashu.PostSwapResponse
	err := c.do(ctx, http.MethodPost, pathSwap, req, &resp)
	return resp, err
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s request: %w", path, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respContent, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		mintErr := &Error{Status: resp.StatusCode}
		var errResp cashu.ErrorResponse
		if err := json.Unmarshal(respContent, &errResp); err == nil && errResp.Detail != "" {
			mintErr.Detail = errResp.Detail
			mintErr.Code = errResp.Code
		} else {
			mintErr.Detail = strings.TrimSpace(string(respContent))
		}
		return mintErr
	}

	if err := json.Unmarshal(respContent, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
