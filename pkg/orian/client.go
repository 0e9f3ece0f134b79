package orian

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

	pkgerrors "github.com/angelmondragon/benefits-logistics/pkg/errors"
)

const (
	defaultTimeout              = 10 * time.Second
	responseBodyReadLimit int64 = 64 * 1024

	// SuccessStatus is the literal success token returned by Orian. The
	// misspelling is part of the wire contract.
	SuccessStatus = "SUCCSESS"
)

// Endpoint is an Orian upsert resource.
type Endpoint string

const (
	EndpointCompany  Endpoint = "Company"
	EndpointSku      Endpoint = "Sku"
	EndpointInbound  Endpoint = "Inbound"
	EndpointOutbound Endpoint = "Outbound"
)

var (
	errBaseURLRequired = errors.New("orian base url is required")
	errTokenRequired   = errors.New("orian api token is required")
)

// Client submits upsert requests to the Orian logistics center.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiToken   string
}

// Option configures optional client behavior.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 && c.httpClient != nil {
			c.httpClient.Timeout = timeout
		}
	}
}

// NewClient builds an Orian client for the given base URL and API token.
func NewClient(baseURL, apiToken string, opts ...Option) (*Client, error) {
	trimmedURL := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmedURL == "" {
		return nil, errBaseURLRequired
	}
	trimmedToken := strings.TrimSpace(apiToken)
	if trimmedToken == "" {
		return nil, errTokenRequired
	}

	client := &Client{
		baseURL:    trimmedURL,
		apiToken:   trimmedToken,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return client, nil
}

// Result separates transport success from the business outcome reported in
// the body. Orian answers HTTP 200 even when it rejects a request.
type Result struct {
	TransportOK  bool
	BusinessOK   bool
	Status       string
	ErrorCode    string
	ErrorMessage string
	Note         string
	MessageID    string
}

// Post wraps data in the DATACOLLECTION envelope and submits it. A transport
// error is returned as CodeDependency; a business rejection is reported only
// through the Result.
func (c *Client) Post(ctx context.Context, endpoint Endpoint, data any) (Result, error) {
	if c == nil {
		return Result{}, pkgerrors.New(pkgerrors.CodeDependency, "orian client not configured")
	}

	payload, err := json.Marshal(Envelope{DataCollection: DataCollection{Data: data}})
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal orian request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(endpoint), bytes.NewReader(payload))
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build orian request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("execute orian %s request", endpoint))
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyReadLimit))
	if err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read orian response")
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), fmt.Sprintf("orian %s request failed", endpoint))
	}

	var apiResp response
	if err := json.Unmarshal(body, &apiResp); err != nil {
		return Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode orian response")
	}

	return apiResp.result(), nil
}

type response struct {
	Status       *string `json:"status"`
	MessageID    *string `json:"MessageID"`
	Note         *string `json:"Note"`
	ErrorCode    *string `json:"errorCode"`
	ErrorMessage *string `json:"ErrorMessage"`
}

func (r response) result() Result {
	res := Result{
		TransportOK:  true,
		Status:       deref(r.Status),
		ErrorCode:    deref(r.ErrorCode),
		ErrorMessage: deref(r.ErrorMessage),
		Note:         deref(r.Note),
		MessageID:    deref(r.MessageID),
	}
	res.BusinessOK = r.Status != nil && *r.Status == SuccessStatus && r.ErrorCode == nil
	return res
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func (c *Client) buildURL(endpoint Endpoint) string {
	return fmt.Sprintf("%s/%s", c.baseURL, strings.TrimLeft(string(endpoint), "/"))
}
