package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient is the default implementation speaking the provider's REST
// surface with basic auth.
type HTTPClient struct {
	baseURL   string
	accountID string
	username  string
	password  string
	client    *http.Client
}

// NewHTTPClient creates a provider client. timeout bounds every request;
// zero means 10 seconds.
func NewHTTPClient(baseURL, accountID, username, password string, timeout time.Duration) *HTTPClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL:   baseURL,
		accountID: accountID,
		username:  username,
		password:  password,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

type placeCallRequest struct {
	PlaceCallParams
	CallTimeout int `json:"callTimeout,omitempty"`
}

type placeCallResponse struct {
	CallID string `json:"callId"`
}

// PlaceCall creates an outbound call leg and returns its identifier
func (c *HTTPClient) PlaceCall(ctx context.Context, params PlaceCallParams) (string, error) {
	req := placeCallRequest{PlaceCallParams: params}
	if params.Timeout > 0 {
		req.CallTimeout = int(params.Timeout / time.Second)
	}

	endpoint := fmt.Sprintf("%s/accounts/%s/calls", c.baseURL, c.accountID)
	body, err := c.do(ctx, http.MethodPost, endpoint, req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	var resp placeCallResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		return "", fmt.Errorf("failed to decode create call response: %w", err)
	}
	return resp.CallID, nil
}

// ModifyCall redirects an in-progress leg to new markup
func (c *HTTPClient) ModifyCall(ctx context.Context, legID string, params ModifyCallParams) error {
	endpoint := fmt.Sprintf("%s/accounts/%s/calls/%s", c.baseURL, c.accountID, legID)
	body, err := c.do(ctx, http.MethodPost, endpoint, params)
	if err != nil {
		return err
	}
	return body.Close()
}

// FetchRecording streams recording media. The caller owns the reader.
func (c *HTTPClient) FetchRecording(ctx context.Context, callID, recordingID string) (io.ReadCloser, error) {
	endpoint := fmt.Sprintf("%s/accounts/%s/calls/%s/recordings/%s/media",
		c.baseURL, c.accountID, callID, recordingID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := classify(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func (c *HTTPClient) do(ctx context.Context, method, endpoint string, payload any) (io.ReadCloser, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := classify(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

func classify(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status >= 400 && status < 500:
		return fmt.Errorf("%w: status %d", ErrRejected, status)
	default:
		return fmt.Errorf("%w: status %d", ErrUnavailable, status)
	}
}
